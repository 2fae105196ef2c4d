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
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/packwork/types"
	"github.com/tomoncle/packwork/unitofwork"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,unique"`
	Qty  int    `bun:"qty"`
}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.NewCreateTable().Model((*widget)(nil)).Exec(context.Background())
	require.NoError(t, err)
	return db
}

func TestServiceImmediateWrites(t *testing.T) {
	ctx := context.Background()
	svc := NewService[widget](openDB(t))

	a, b := &widget{Name: "a", Qty: 1}, &widget{Name: "b", Qty: 2}
	require.NoError(t, svc.Save(ctx, a, b))
	require.NotZero(t, a.ID)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	a.Qty = 10
	require.NoError(t, svc.Update(ctx, a))
	list, err := svc.List(ctx, types.NewQueryFilter("qty > ?", 5))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	require.NoError(t, svc.Delete(ctx, b.ID))
	n, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := svc.Get(ctx, int64(999))
	require.NoError(t, err)
	assert.Nil(t, missing)

	page, err := svc.Page(ctx, types.NewDefaultPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	var names []string
	require.NoError(t, svc.SelectBuilder().Column("name").Scan(ctx, &names))
	assert.Equal(t, []string{"a"}, names)
}

func TestServiceStagesIntoUnitOfWork(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := NewService[widget](db)

	uow := unitofwork.New(db)
	defer func() { _ = uow.Close() }()
	require.NoError(t, svc.SaveIn(uow, &widget{Name: "x"}, &widget{Name: "y"}))

	n, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := uow.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
