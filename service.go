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

package packwork

import (
	"context"
	"sync"

	"github.com/tomoncle/packwork/database"
	"github.com/tomoncle/packwork/repository"
	"github.com/tomoncle/packwork/types"
	"github.com/tomoncle/packwork/unitofwork"
	"github.com/uptrace/bun"
)

// Service is the immediate mode facade over a repository: every write
// method commits before it returns. The In variants stage into a caller
// owned unit of work instead.
type Service[T any] interface {
	// Get returns a single entity by its identifier, nil when missing.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query executes a raw query and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error

	SaveIn(uow unitofwork.UnitOfWork, model ...*T) error
	UpdateIn(uow unitofwork.UnitOfWork, model *T) error
	DeleteIn(uow unitofwork.UnitOfWork, id any) error

	// SelectBuilder returns a Bun select query over the entity table.
	SelectBuilder() *bun.SelectQuery

	// InsertBuilder returns a Bun insert query builder for the entity.
	InsertBuilder() *bun.InsertQuery

	// UpdateBuilder returns a Bun update query builder for the entity.
	UpdateBuilder() *bun.UpdateQuery

	// DeleteBuilder returns a Bun delete query builder for the entity.
	DeleteBuilder() *bun.DeleteQuery
}

type baseServiceImpl[T any] struct {
	db     func() *bun.DB
	reader repository.Repository[T]
	once   sync.Once
}

// NewService returns a Service over db.
func NewService[T any](db *bun.DB) Service[T] {
	return &baseServiceImpl[T]{db: func() *bun.DB { return db }}
}

// NewDefaultService returns a Service over the process wide database. The
// database is looked up on first use, so it may be created before InitDB.
func NewDefaultService[T any]() Service[T] {
	return &baseServiceImpl[T]{db: database.GetDB}
}

func (s *baseServiceImpl[T]) baseRepo() repository.Repository[T] {
	s.once.Do(func() { s.reader = repository.NewRepository[T](repository.NewSession(s.db())) })
	return s.reader
}

// write stages through a fresh unit of work and commits it.
func (s *baseServiceImpl[T]) write(ctx context.Context, stage func(repository.Repository[T]) error) error {
	uow := unitofwork.New(s.db())
	defer func() { _ = uow.Close() }()
	if err := stage(unitofwork.GetRepository[T](uow)); err != nil {
		return err
	}
	_, err := uow.Commit(ctx)
	return err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return s.write(ctx, func(r repository.Repository[T]) error { return r.AddRange(model...) })
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return s.baseRepo().Upsert(ctx, fields, duplicateKeys, model...)
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.baseRepo().GetByID(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	return s.baseRepo().GetAll(ctx)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return s.baseRepo().List(ctx, filter)
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	return s.baseRepo().Query(ctx, query, args...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	return s.baseRepo().Count(ctx, filter)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) error {
	return s.write(ctx, func(r repository.Repository[T]) error { return r.Update(model) })
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.write(ctx, func(r repository.Repository[T]) error { return r.Delete(id) })
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	return s.baseRepo().GetPaged(ctx, page)
}

func (s *baseServiceImpl[T]) SaveIn(uow unitofwork.UnitOfWork, model ...*T) error {
	return unitofwork.GetRepository[T](uow).AddRange(model...)
}

func (s *baseServiceImpl[T]) UpdateIn(uow unitofwork.UnitOfWork, model *T) error {
	return unitofwork.GetRepository[T](uow).Update(model)
}

func (s *baseServiceImpl[T]) DeleteIn(uow unitofwork.UnitOfWork, id any) error {
	return unitofwork.GetRepository[T](uow).Delete(id)
}

func (s *baseServiceImpl[T]) SelectBuilder() *bun.SelectQuery {
	return s.baseRepo().AsNoTracking()
}

func (s *baseServiceImpl[T]) InsertBuilder() *bun.InsertQuery {
	return s.baseRepo().NewInsert()
}

func (s *baseServiceImpl[T]) UpdateBuilder() *bun.UpdateQuery {
	return s.baseRepo().NewUpdate()
}

func (s *baseServiceImpl[T]) DeleteBuilder() *bun.DeleteQuery {
	return s.baseRepo().NewDelete()
}
