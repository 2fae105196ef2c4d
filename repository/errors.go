/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import "errors"

var (
	// ErrPrimaryKey is returned by id based operations on tables that do not
	// have exactly one primary key column.
	ErrPrimaryKey = errors.New("repository: entity must have exactly one primary key")

	// ErrNilEntity is returned when a nil entity is staged.
	ErrNilEntity = errors.New("repository: nil entity")

	// ErrNotTracked is returned by Detach for entities the tracker does not hold.
	ErrNotTracked = errors.New("repository: entity is not tracked")
)
