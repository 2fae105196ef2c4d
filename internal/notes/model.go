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

package notes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/packwork/database"
	"github.com/tomoncle/packwork/types"
	"github.com/uptrace/bun"
)

type Note struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID        string               `bun:"id,pk" json:"id"`
	Title     string               `bun:"title,notnull" json:"title"`
	Body      string               `bun:"body" json:"body"`
	Pinned    bool                 `bun:"pinned,notnull" json:"pinned"`
	Tags      types.JSON[[]string] `bun:"tags,type:text" json:"tags"`
	CreatedAt time.Time            `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time            `bun:"updated_at,notnull" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Note)(nil)

// BeforeAppendModel assigns the id and timestamps.
func (n *Note) BeforeAppendModel(_ context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		n.UpdatedAt = now
	case *bun.UpdateQuery:
		n.UpdatedAt = now
	}
	return nil
}

func init() {
	database.RegisterModel((*Note)(nil), 10)
}
