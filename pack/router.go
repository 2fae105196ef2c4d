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
	"net/http"
	"strings"
)

// Router registers handlers on a ServeMux below a path prefix. Patterns use
// the ServeMux syntax, including an optional leading method.
type Router struct {
	mux        *http.ServeMux
	prefix     string
	middleware []func(http.Handler) http.Handler
}

func NewRouter(mux *http.ServeMux, prefix string) *Router {
	return &Router{mux: mux, prefix: normalizePrefix(prefix)}
}

func (r *Router) Prefix() string { return r.prefix }

// Use adds middleware applied to handlers registered afterwards.
func (r *Router) Use(mw ...func(http.Handler) http.Handler) {
	r.middleware = append(r.middleware, mw...)
}

// Group returns a router below prefix sharing the current middleware.
func (r *Router) Group(prefix string) *Router {
	mw := make([]func(http.Handler) http.Handler, len(r.middleware))
	copy(mw, r.middleware)
	return &Router{
		mux:        r.mux,
		prefix:     normalizePrefix(r.prefix + normalizePrefix(prefix)),
		middleware: mw,
	}
}

func (r *Router) Handle(pattern string, h http.Handler) {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	r.mux.Handle(r.pattern(pattern), h)
}

func (r *Router) HandleFunc(pattern string, fn func(http.ResponseWriter, *http.Request)) {
	r.Handle(pattern, http.HandlerFunc(fn))
}

// pattern joins the prefix into the path part of p. "GET /" becomes
// "GET /prefix/".
func (r *Router) pattern(p string) string {
	method, rest := "", p
	if m, path, ok := strings.Cut(p, " "); ok && !strings.Contains(m, "/") {
		method, rest = m+" ", strings.TrimSpace(path)
	}
	host, path := "", rest
	if i := strings.Index(rest, "/"); i > 0 {
		host, path = rest[:i], rest[i:]
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return method + host + r.prefix + path
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
