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

package unitofwork

import (
	"database/sql"

	"github.com/tomoncle/packwork/logging"
)

type Option func(*unitOfWork)

// WithLogger replaces the "UNITOFWORK" logger.
func WithLogger(l logging.Logger) Option {
	return func(u *unitOfWork) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithTxOptions sets the options used for every transaction the unit of
// work begins.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(u *unitOfWork) { u.txOptions = opts }
}
