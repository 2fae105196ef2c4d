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
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/packwork/database"
	"github.com/tomoncle/packwork/logging"
	"github.com/tomoncle/packwork/pack"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	models := database.NewModelRegistry()
	models.Register(database.NewModelAdapter((*Note)(nil), 10))
	mm := database.NewMigrationManager(db, logging.NopLogger{})
	mm.SetRegistry(models)
	require.NoError(t, mm.RunMigrations(context.Background()))

	registry := pack.NewRegistry()
	require.NoError(t, registry.Register(Package{}))
	host := pack.NewHost(pack.WithRegistry(registry))
	pack.AddInstance(host.Services, db)
	require.NoError(t, host.AddPackages(func(o *pack.Options) {
		o.EnableLocalizer = true
		o.SharedResourcesDir = ""
		o.Settings = map[string]map[string]interface{}{Name: {"max_title_length": 12, "page_size": 2}}
	}))
	h, err := host.UsePackages()
	require.NoError(t, err)
	t.Cleanup(func() { _ = host.Close() })
	return h
}

type response struct {
	Message  string  `json:"message"`
	Error    string  `json:"error"`
	Note     *Note   `json:"note"`
	Items    []*Note `json:"items"`
	Total    int     `json:"total"`
	PageSize int     `json:"page_size"`
}

func do(t *testing.T, h http.Handler, method, target, lang string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestNotesCRUD(t *testing.T) {
	h := newServer(t)

	code, res := do(t, h, http.MethodPost, "/notes/", "en-US", notePayload{Title: "groceries", Body: "milk", Tags: []string{"Food", " food ", "", "home"}})
	require.Equal(t, http.StatusCreated, code, res.Error)
	assert.Equal(t, `Note "groceries" created`, res.Message)
	require.NotNil(t, res.Note)
	id := res.Note.ID
	assert.Len(t, id, 36)
	assert.False(t, res.Note.CreatedAt.IsZero())
	assert.Equal(t, []string{"food", "home"}, res.Note.Tags.V)

	code, res = do(t, h, http.MethodPost, "/notes/", "", notePayload{Title: "todo", Pinned: true})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "笔记“todo”已创建", res.Message)

	_, _ = do(t, h, http.MethodPost, "/notes/", "", notePayload{Title: "third"})

	code, res = do(t, h, http.MethodGet, "/notes/", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "todo", res.Items[0].Title)

	code, res = do(t, h, http.MethodGet, "/notes/?pinned=false&q=groc", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Items, 1)
	assert.Equal(t, id, res.Items[0].ID)

	code, res = do(t, h, http.MethodGet, "/notes/?tag=FOOD", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"food", "home"}, res.Items[0].Tags.V)

	code, res = do(t, h, http.MethodPut, "/notes/"+id, "en-US", notePayload{Title: "shopping", Body: "eggs"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, "Note updated", res.Message)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got Note
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "shopping", got.Title)
	assert.Equal(t, "eggs", got.Body)
	assert.Empty(t, got.Tags.V)

	code, res = do(t, h, http.MethodDelete, "/notes/"+id, "en-US", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Note deleted", res.Message)

	code, res = do(t, h, http.MethodGet, "/notes/"+id, "en-US", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Note "+id+" not found", res.Error)
}

func TestNotesValidation(t *testing.T) {
	h := newServer(t)

	code, res := do(t, h, http.MethodGet, "/notes/not-a-uuid", "en-US", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "not-a-uuid is not a valid note id", res.Error)

	code, res = do(t, h, http.MethodPost, "/notes/", "en-US", notePayload{Title: "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Title is required", res.Error)

	code, res = do(t, h, http.MethodPost, "/notes/", "zh-CN", notePayload{Title: "a title that is too long"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "标题最多 12 个字符", res.Error)
}

func TestNotesListBounds(t *testing.T) {
	h := newServer(t)
	for _, p := range []notePayload{
		{Title: "one", Tags: []string{"a_b"}},
		{Title: "two", Tags: []string{"axb"}},
		{Title: "three", Tags: []string{"10%off"}},
		{Title: "four", Tags: []string{"10xoff"}},
	} {
		code, res := do(t, h, http.MethodPost, "/notes/", "", p)
		require.Equal(t, http.StatusCreated, code, res.Error)
	}

	code, res := do(t, h, http.MethodGet, fmt.Sprintf("/notes/?page=%d&size=2", math.MaxInt), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 4, res.Total)
	assert.Empty(t, res.Items)

	code, res = do(t, h, http.MethodGet, "/notes/?size=100000", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 100, res.PageSize)
	assert.Len(t, res.Items, 4)

	code, res = do(t, h, http.MethodGet, "/notes/?tag=a_b", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "one", res.Items[0].Title)

	code, res = do(t, h, http.MethodGet, "/notes/?tag=10%25off", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "three", res.Items[0].Title)

	code, res = do(t, h, http.MethodGet, "/notes/?tag=_", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, res.Items)
}
