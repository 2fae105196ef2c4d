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

package localize

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newResources(t *testing.T) *ResourceManager {
	t.Helper()
	fsys := fstest.MapFS{
		"resources/en-US.yaml":       {Data: []byte("greeting: Hello %s\nnotes:\n  created: Note created\n")},
		"resources/notes.zh-CN.json": {Data: []byte(`{"greeting": "你好 %s", "notes": {"created": "已创建"}}`)},
		"resources/en.yaml":          {Data: []byte("only_parent: from en\n")},
	}
	shared := fstest.MapFS{
		"en-US.yaml": {Data: []byte("greeting: shared hello\nfooter: Shared footer\n")},
		"zh-CN.yaml": {Data: []byte("footer: 共享页脚\n")},
	}

	rm := NewResourceManager()
	require.NoError(t, rm.LoadModuleResources("notes", fsys, []string{
		"resources/en-US.yaml", "resources/notes.zh-CN.json", "resources/en.yaml",
	}))
	require.NoError(t, rm.LoadSharedFS(shared, []string{"en-US.yaml", "zh-CN.yaml"}))
	return rm
}

func ctxWith(tag language.Tag) context.Context {
	return WithCulture(context.Background(), RequestCulture{Culture: tag, UICulture: tag})
}

func TestCultureFromFileName(t *testing.T) {
	for name, want := range map[string]language.Tag{
		"en-US.yaml":              language.AmericanEnglish,
		"dir/messages.zh-CN.json": language.MustParse("zh-CN"),
		"fr.yml":                  language.French,
	} {
		got, err := CultureFromFileName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := CultureFromFileName("messages.yaml")
	assert.Error(t, err)
}

func TestLocalizerFallbackOrder(t *testing.T) {
	f := NewFactory(newResources(t), language.MustParse("zh-CN"))
	l := f.Create("notes")

	en := ctxWith(language.AmericanEnglish)
	zh := ctxWith(language.MustParse("zh-CN"))

	assert.Equal(t, "Hello Ann", l.Get(en, "greeting", "Ann"))
	assert.Equal(t, "你好 Ann", l.Get(zh, "greeting", "Ann"))
	assert.Equal(t, "Note created", l.Get(en, "notes.created"))
	assert.Equal(t, "已创建", l.Get(zh, "notes.created"))

	// module parent culture before shared
	assert.Equal(t, "from en", l.Get(en, "only_parent"))
	// shared table
	assert.Equal(t, "Shared footer", l.Get(en, "footer"))
	assert.Equal(t, "共享页脚", l.Get(zh, "footer"))

	s, found := l.Lookup(en, "missing.key")
	assert.False(t, found)
	assert.Equal(t, "missing.key", s)

	// no culture on the context uses the fallback
	assert.Equal(t, "已创建", l.Get(context.Background(), "notes.created"))

	other := f.Create("billing")
	assert.Equal(t, "shared hello", other.Get(en, "greeting"))

	all := l.All(en)
	assert.Equal(t, "Hello %s", all["greeting"])
	assert.Contains(t, all, "footer")
}

func TestLocalizerPrinter(t *testing.T) {
	l := NewFactory(newResources(t), language.AmericanEnglish).Create("notes")
	p, err := l.Printer(ctxWith(language.AmericanEnglish))
	require.NoError(t, err)
	assert.Equal(t, "Note created", p.Sprintf("notes.created"))
}

func defaultOptions() *Options {
	return NewOptions().
		AddSupportedCultures("zh-CN", "en-US").
		AddSupportedUICultures("zh-CN", "en-US").
		SetDefaultCulture("zh-CN")
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	assert.Equal(t, []language.Tag{language.MustParse("zh-CN"), language.AmericanEnglish}, o.SupportedCultures)
	assert.Equal(t, language.MustParse("zh-CN"), o.DefaultCulture)

	o.AddSupportedCultures("not a culture", "en-US", "fr")
	assert.Len(t, o.SupportedCultures, 3)
}

func TestMiddlewareResolution(t *testing.T) {
	var got RequestCulture
	h := Middleware(defaultOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CultureFromContext(r.Context())
	}))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		want   string
		source string
	}{
		{"default", func(r *http.Request) {}, "zh-CN", "default"},
		{"header", func(r *http.Request) { r.Header.Set("Accept-Language", "en-GB,en;q=0.8") }, "en-US", "header"},
		{"unsupported header", func(r *http.Request) { r.Header.Set("Accept-Language", "ja") }, "zh-CN", "default"},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "c=en-US|uic=en-US"})
			r.Header.Set("Accept-Language", "zh-CN")
		}, "en-US", "cookie"},
		{"query wins", func(r *http.Request) {
			q := r.URL.Query()
			q.Set(DefaultQueryKey, "en-US")
			r.URL.RawQuery = q.Encode()
			r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "zh-CN"})
		}, "en-US", "query"},
		{"bad query falls through", func(r *http.Request) {
			r.URL.RawQuery = DefaultQueryKey + "=%%%"
			r.Header.Set("Accept-Language", "en")
		}, "en-US", "header"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, got.Culture.String())
			assert.Equal(t, tc.source, got.Source)
			assert.Equal(t, tc.want, rec.Header().Get("Content-Language"))
		})
	}
}

func TestMiddlewarePersistsQueryCulture(t *testing.T) {
	opts := defaultOptions()
	opts.PersistQueryCulture = true
	h := Middleware(opts)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/?culture=en-US", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "c=en-US|uic=en-US", cookies[0].Value)
}

func TestReloadAndWatcher(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "en-US.yaml")
	require.NoError(t, os.WriteFile(file, []byte("title: first\n"), 0o644))

	rm := NewResourceManager()
	require.NoError(t, rm.LoadSharedResources(dir))
	require.Equal(t, []string{file}, rm.Sources())

	l := NewFactory(rm, language.AmericanEnglish).Create("any")
	en := ctxWith(language.AmericanEnglish)
	assert.Equal(t, "first", l.Get(en, "title"))

	w := NewWatcher(rm, 100*time.Millisecond)
	reloaded := make(chan error, 4)
	w.OnReload = func(_ string, err error) { reloaded <- err }
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("title: second version\n"), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("resource file change was not picked up")
	}
	assert.Equal(t, "second version", l.Get(en, "title"))

	require.NoError(t, rm.Reload(file, true))
	assert.Equal(t, "title", l.Get(en, "title"))
	assert.Error(t, rm.Reload(filepath.Join(dir, "nope.yaml"), false))
}
