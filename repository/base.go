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
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/packwork/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	session Session
}

// NewRepository returns a generic repository reading through and staging
// writes into s.
func NewRepository[T any](s Session) Repository[T] {
	return &baseRepositoryImpl[T]{session: s}
}

func (r *baseRepositoryImpl[T]) conn() bun.IDB { return r.session.Conn() }

func (r *baseRepositoryImpl[T]) err() error { return r.session.Err() }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.conn().Dialect() }

func (r *baseRepositoryImpl[T]) NewSelect() *bun.SelectQuery { return r.conn().NewSelect() }

func (r *baseRepositoryImpl[T]) NewInsert() *bun.InsertQuery { return r.conn().NewInsert() }

func (r *baseRepositoryImpl[T]) NewUpdate() *bun.UpdateQuery { return r.conn().NewUpdate() }

func (r *baseRepositoryImpl[T]) NewDelete() *bun.DeleteQuery { return r.conn().NewDelete() }

func (r *baseRepositoryImpl[T]) AsNoTracking() *bun.SelectQuery {
	return r.conn().NewSelect().Model((*T)(nil))
}

func (r *baseRepositoryImpl[T]) Where(filter *types.QueryFilter) *bun.SelectQuery {
	return applyFilter(r.AsNoTracking(), filter)
}

// pk returns the single primary key column of T.
func (r *baseRepositoryImpl[T]) pk() (string, error) {
	table := r.Dialect().Tables().Get(reflect.TypeOf((*T)(nil)).Elem())
	if table == nil || len(table.PKs) != 1 {
		return "", ErrPrimaryKey
	}
	return table.PKs[0].Name, nil
}

func (r *baseRepositoryImpl[T]) GetByID(ctx context.Context, id any) (*T, error) {
	pk, err := r.pk()
	if err != nil {
		return nil, err
	}
	return r.FirstOrDefault(ctx, types.NewQueryFilter("? = ?", bun.Ident(pk), id))
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context) ([]*T, error) {
	return r.List(ctx, nil)
}

func (r *baseRepositoryImpl[T]) FirstOrDefault(ctx context.Context, filter *types.QueryFilter) (*T, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	entity := new(T)
	err := applyFilter(r.conn().NewSelect().Model(entity), filter).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	if err := applyFilter(r.conn().NewSelect().Model(&entities), filter).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	return r.List(ctx, types.NewQueryFilter(query, args...))
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	if err := r.err(); err != nil {
		return 0, err
	}
	return r.Where(filter).Count(ctx)
}

func (r *baseRepositoryImpl[T]) Exists(ctx context.Context, filter *types.QueryFilter) (bool, error) {
	if err := r.err(); err != nil {
		return false, err
	}
	return r.Where(filter).Exists(ctx)
}

func (r *baseRepositoryImpl[T]) GetPaged(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if err := r.err(); err != nil {
		return nil, err
	}
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, 1)
	}
	entities := make([]*T, 0)
	query := applyFilter(r.conn().NewSelect().Model(&entities), pageRequest.GetFilter())

	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}
	err = query.
		Order(pageRequest.GetOrders()...).
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetLimit()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) tracker() *ChangeTracker { return r.session.ChangeTracker() }

func (r *baseRepositoryImpl[T]) Add(entity *T) error {
	return r.AddRange(entity)
}

func (r *baseRepositoryImpl[T]) AddRange(entities ...*T) error {
	return r.trackAll(Added, entities)
}

func (r *baseRepositoryImpl[T]) Update(entity *T) error {
	return r.UpdateRange(entity)
}

func (r *baseRepositoryImpl[T]) UpdateRange(entities ...*T) error {
	return r.trackAll(Modified, entities)
}

func (r *baseRepositoryImpl[T]) DeleteRange(entities ...*T) error {
	return r.trackAll(Deleted, entities)
}

func (r *baseRepositoryImpl[T]) Delete(id any) error {
	if err := r.err(); err != nil {
		return err
	}
	pk, err := r.pk()
	if err != nil {
		return err
	}
	return r.tracker().TrackDelete((*T)(nil), types.NewQueryFilter("? = ?", bun.Ident(pk), id))
}

func (r *baseRepositoryImpl[T]) DeleteWhere(filter *types.QueryFilter) error {
	if err := r.err(); err != nil {
		return err
	}
	return r.tracker().TrackDelete((*T)(nil), filter)
}

func (r *baseRepositoryImpl[T]) trackAll(state EntityState, entities []*T) error {
	if err := r.err(); err != nil {
		return err
	}
	for _, e := range entities {
		if e == nil {
			return ErrNilEntity
		}
	}
	for _, e := range entities {
		if err := r.tracker().Track(state, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities ...*T) error {
	if err := r.err(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	if len(entities) == 0 {
		return nil
	}
	rows := make([]*T, len(entities))
	copy(rows, entities)

	db := r.conn()
	switch {
	case db.Dialect().Features().Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, db, fields, duplicateKeys, rows)
	case db.Dialect().Features().Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, db, fields, rows)
	default:
		return r.upsertFallback(ctx, db, rows)
	}
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, db bun.IDB, fields []string, rows []*T) error {
	q := db.NewInsert().Model(&rows).On("DUPLICATE KEY UPDATE")
	for _, f := range fields {
		q = q.Set("? = VALUES(?)", bun.Ident(f), bun.Ident(f))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, db bun.IDB, fields []string, duplicateKeys []string, rows []*T) error {
	if len(duplicateKeys) == 0 {
		pk, err := r.pk()
		if err != nil {
			return err
		}
		duplicateKeys = []string{pk}
	}
	keys := make([]schema.Ident, len(duplicateKeys))
	for i, k := range duplicateKeys {
		keys[i] = schema.Ident(k)
	}
	q := db.NewInsert().Model(&rows).On("CONFLICT (?) DO UPDATE", bun.In(keys))
	for _, f := range fields {
		q = q.Set("? = EXCLUDED.?", bun.Ident(f), bun.Ident(f))
	}
	_, err := q.Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, db bun.IDB, rows []*T) error {
	for _, entity := range rows {
		if _, err := db.NewInsert().Model(entity).Exec(ctx); err != nil {
			if _, updateErr := db.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", err, updateErr)
			}
		}
	}
	return nil
}

func applyFilter(q *bun.SelectQuery, filter *types.QueryFilter) *bun.SelectQuery {
	if filter.IsEmpty() {
		return q
	}
	return q.Where(filter.Schema, filter.Args...)
}
