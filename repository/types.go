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

import (
	"context"

	"github.com/tomoncle/packwork/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Session is the storage scope a repository reads through and stages
// writes into. Conn is the active transaction when there is one. Err is
// non-nil once the session can no longer be used; repositories return it
// from every read and write.
type Session interface {
	Conn() bun.IDB
	ChangeTracker() *ChangeTracker
	Err() error
}

// ReadRepository runs queries immediately on the session connection.
// GetByID and FirstOrDefault return a nil entity and nil error when no row
// matches.
type ReadRepository[T any] interface {
	GetByID(ctx context.Context, id any) (*T, error)

	GetAll(ctx context.Context) ([]*T, error)

	FirstOrDefault(ctx context.Context, filter *types.QueryFilter) (*T, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	Exists(ctx context.Context, filter *types.QueryFilter) (bool, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	GetPaged(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// WriteRepository stages writes in the session change tracker. Nothing
// reaches the database until the tracker is saved.
type WriteRepository[T any] interface {
	Add(entity *T) error
	AddRange(entities ...*T) error
	Update(entity *T) error
	UpdateRange(entities ...*T) error
	Delete(id any) error
	DeleteWhere(filter *types.QueryFilter) error
	DeleteRange(entities ...*T) error
}

// Repository combines reads, paging and staged writes with an immediate
// Upsert and the bun query builders for everything else.
type Repository[T any] interface {
	ReadRepository[T]
	PageQueryRepository[T]
	WriteRepository[T]

	// Upsert inserts or, on a duplicate key, updates fields. It executes
	// immediately.
	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error

	// AsNoTracking starts a plain select over the entity table.
	AsNoTracking() *bun.SelectQuery
	// Where starts a select over the entity table filtered by filter.
	Where(filter *types.QueryFilter) *bun.SelectQuery

	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
	NewInsert() *bun.InsertQuery
	NewUpdate() *bun.UpdateQuery
	NewDelete() *bun.DeleteQuery
}

type session struct {
	db      bun.IDB
	tracker *ChangeTracker
}

// NewSession returns a Session over db with its own change tracker, for
// repositories used outside a unit of work.
func NewSession(db bun.IDB) Session {
	return &session{db: db, tracker: NewChangeTracker()}
}

func (s *session) Conn() bun.IDB                 { return s.db }
func (s *session) ChangeTracker() *ChangeTracker { return s.tracker }
func (s *session) Err() error                    { return nil }

// SaveChanges flushes the session's staged writes on its connection.
func SaveChanges(ctx context.Context, s Session) (int64, error) {
	return s.ChangeTracker().SaveChanges(ctx, s.Conn())
}
