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

package pack

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/packwork/localize"
)

type greeterSettings struct {
	Greeting string
	Limit    int
	Timeout  time.Duration
}

type greeter struct {
	name     string
	priority int
	failCfg  bool
	res      fs.FS
}

func (g *greeter) Name() string  { return g.name }
func (g *greeter) Priority() int { return g.priority }

func (g *greeter) Resources() fs.FS { return g.res }

func (g *greeter) ConfigureServices(s *Services) error {
	if g.failCfg {
		return errors.New("boom")
	}
	BindConfiguration[greeterSettings](s, g.name)
	return nil
}

func (g *greeter) MapRoutes(r *Router) error {
	r.HandleFunc("GET /hello", func(w http.ResponseWriter, req *http.Request) {
		cfg, err := FromRequest[*Configuration[greeterSettings]](req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		f, err := FromRequest[*localize.Factory](req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"greeting": cfg.Value().Greeting,
			"limit":    cfg.Value().Limit,
			"message":  f.Create(g.name).Get(req.Context(), "hello", "Ann"),
		})
	})
	return nil
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&greeter{name: "b"}))
	require.NoError(t, r.Register(&greeter{name: "a"}))
	assert.Error(t, r.Register(&greeter{name: "a"}))
	assert.Error(t, r.Register(&greeter{}))

	names := []string{}
	for _, p := range r.Packages() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestManagerWithoutPaths(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&greeter{name: "zeta", priority: 1}))
	require.NoError(t, r.Register(&greeter{name: "beta", priority: 1}))
	require.NoError(t, r.Register(&greeter{name: "alpha", priority: 5}))
	require.NoError(t, r.Register(&greeter{name: "first", priority: -1}))

	m, err := NewManager(NewOptions(), r)
	require.NoError(t, err)

	var names []string
	for _, d := range m.GetPacks() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"first", "beta", "zeta", "alpha"}, names)

	d, ok := m.GetPack("beta")
	require.True(t, ok)
	assert.Equal(t, "/beta", d.RoutePrefix())
	assert.Empty(t, d.Dir)

	opts := NewOptions()
	opts.Include = []string{"alpha"}
	m, err = NewManager(opts, r)
	require.NoError(t, err)
	assert.Len(t, m.GetPacks(), 1)
}

func TestManagerDiscovery(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "greet", "package.yaml"), "name: greet\npriority: 2\nprefix: /api/greet\nsettings:\n  greeting: hi\n")
	writeFile(t, filepath.Join(root, "greet", "resources", "en-US.yaml"), "hello: Hello\n")
	writeFile(t, filepath.Join(root, "greet", "resources", "nested", "greet.zh-CN.json"), `{"hello": "你好"}`)
	writeFile(t, filepath.Join(root, "other", "package.json"), `{"priority": 1}`)
	writeFile(t, filepath.Join(root, "off", "package.yml"), "enabled: false\n")
	writeFile(t, filepath.Join(root, "ghost", "package.yaml"), "name: ghost\n")

	r := NewRegistry()
	for _, name := range []string{"greet", "other", "off", "unlisted"} {
		require.NoError(t, r.Register(&greeter{name: name}))
	}

	opts := NewOptions()
	opts.Paths = []string{root, filepath.Join(root, "missing")}
	opts.Settings = map[string]map[string]interface{}{"greet": {"limit": "3"}}
	m, err := NewManager(opts, r)
	require.NoError(t, err)

	packs := m.GetPacks()
	require.Len(t, packs, 2)
	assert.Equal(t, "other", packs[0].Name)
	assert.Equal(t, "greet", packs[1].Name)

	greet := packs[1]
	assert.Equal(t, filepath.Join(root, "greet"), greet.Dir)
	assert.Equal(t, "/api/greet", greet.RoutePrefix())
	assert.Equal(t, []string{"resources/en-US.yaml", "resources/nested/greet.zh-CN.json"}, greet.ResourceFiles)
	assert.Equal(t, map[string]interface{}{"greeting": "hi", "limit": "3"}, greet.Settings())

	_, ok := m.GetPack("off")
	assert.False(t, ok)
	assert.Same(t, opts, m.GetPackOptions())
}

func TestManagerDuplicateManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "package.yaml"), "name: greet\n")
	writeFile(t, filepath.Join(root, "b", "package.yaml"), "name: greet\n")

	r := NewRegistry()
	require.NoError(t, r.Register(&greeter{name: "greet"}))
	opts := NewOptions()
	opts.Paths = []string{root}
	_, err := NewManager(opts, r)
	assert.ErrorContains(t, err, "manifests in both")
}

func TestManagerLoadsOverlappingMatchesOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alpha", "package.yaml"), "name: alpha\npriority: 3\n")

	r := NewRegistry()
	require.NoError(t, r.Register(&greeter{name: "alpha"}))
	opts := NewOptions()
	opts.Paths = []string{root, root + string(filepath.Separator)}
	opts.ManifestPatterns = append(opts.ManifestPatterns, "alpha/package.yaml")

	m, err := NewManager(opts, r)
	require.NoError(t, err)
	require.Len(t, m.GetPacks(), 1)
	assert.Equal(t, 3, m.GetPacks()[0].Priority())
}

type counter struct{ closed *int }

func (c *counter) Close() error { *c.closed++; return nil }

func TestServicesLifetimes(t *testing.T) {
	s := NewServices()
	singletons, scoped, closed := 0, 0, 0
	AddSingleton(s, func(*Scope) (*greeter, error) {
		singletons++
		return &greeter{name: "single"}, nil
	})
	AddScoped(s, func(sc *Scope) (*counter, error) {
		scoped++
		MustResolve[*greeter](sc)
		return &counter{closed: &closed}, nil
	})

	a, b := s.NewScope(), s.NewScope()
	ca := MustResolve[*counter](a)
	assert.Same(t, ca, MustResolve[*counter](a))
	assert.NotSame(t, ca, MustResolve[*counter](b))
	assert.Equal(t, 1, singletons)
	assert.Equal(t, 2, scoped)
	assert.True(t, Has[*counter](s))

	require.NoError(t, a.Close())
	assert.Equal(t, 1, closed)

	_, err := Resolve[string](a)
	assert.ErrorIs(t, err, ErrServiceNotFound)
	assert.Panics(t, func() { MustResolve[int](a) })
}

func TestServicesMiddleware(t *testing.T) {
	s := NewServices()
	closed := 0
	AddScoped(s, func(*Scope) (*counter, error) { return &counter{closed: &closed}, nil })

	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := FromRequest[*counter](r)
		assert.NoError(t, err)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 2, closed)

	_, err := FromRequest[*counter](httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}

func TestDecodeSettings(t *testing.T) {
	v, err := DecodeSettings[greeterSettings](map[string]interface{}{
		"greeting": "hey",
		"limit":    "7",
		"timeout":  "1500ms",
	})
	require.NoError(t, err)
	assert.Equal(t, greeterSettings{Greeting: "hey", Limit: 7, Timeout: 1500 * time.Millisecond}, v)

	_, err = DecodeSettings[greeterSettings](map[string]interface{}{"limit": "many"})
	assert.Error(t, err)
}

func TestRouterPatterns(t *testing.T) {
	mux := http.NewServeMux()
	r := NewRouter(mux, "notes/")
	assert.Equal(t, "/notes", r.Prefix())
	assert.Equal(t, "GET /notes/{id}", r.pattern("GET /{id}"))
	assert.Equal(t, "/notes/", r.pattern("/"))
	assert.Equal(t, "POST example.com/notes/x", r.pattern("POST example.com/x"))

	var order []string
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "mw")
			next.ServeHTTP(w, req)
		})
	})
	v1 := r.Group("/v1/")
	assert.Equal(t, "/notes/v1", v1.Prefix())
	v1.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		_, _ = w.Write([]byte("pong"))
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/v1/ping", nil))
	assert.Equal(t, "pong", rec.Body.String())
	assert.Equal(t, []string{"mw", "handler"}, order)
}

func TestHostLifecycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&greeter{
		name: "greet",
		res: fstest.MapFS{
			"en-US.yaml": {Data: []byte("hello: Hello %s\n")},
			"zh-CN.yaml": {Data: []byte("hello: 你好 %s\n")},
		},
	}))

	h := NewHost(WithRegistry(r))
	_, err := h.UsePackages()
	assert.ErrorIs(t, err, ErrPackagesNotAdded)

	require.NoError(t, h.AddPackages(func(o *Options) {
		o.EnableLocalizer = true
		o.SharedResourcesDir = ""
		o.Settings = map[string]map[string]interface{}{"greet": {"greeting": "hi", "limit": 2}}
	}))
	require.NotNil(t, h.Manager())
	require.NotNil(t, h.Localizer())

	handler, err := h.UsePackages(func(o *localize.Options) {
		o.AddSupportedCultures("fr")
	})
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	get := func(lang string) map[string]interface{} {
		req := httptest.NewRequest(http.MethodGet, "/greet/hello", nil)
		if lang != "" {
			req.Header.Set("Accept-Language", lang)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	body := get("")
	assert.Equal(t, "hi", body["greeting"])
	assert.EqualValues(t, 2, body["limit"])
	assert.Equal(t, "你好 Ann", body["message"])
	assert.Equal(t, "Hello Ann", get("en-US")["message"])
}

func TestHostAggregatesConfigureErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&greeter{name: "a", failCfg: true}))
	require.NoError(t, r.Register(&greeter{name: "b", failCfg: true}))
	require.NoError(t, r.Register(&greeter{name: "c"}))

	h := NewHost(WithRegistry(r))
	err := h.AddPackages()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure services of a")
	assert.Contains(t, err.Error(), "configure services of b")
	assert.True(t, Has[*Configuration[greeterSettings]](h.Services))
}
