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
	"strings"

	"golang.org/x/text/language"
)

// RequestCulture is the culture pair resolved for one request.
type RequestCulture struct {
	Culture   language.Tag
	UICulture language.Tag
	// Source is "query", "cookie", "header" or "default".
	Source string
}

type cultureKey struct{}

// WithCulture stores rc on ctx.
func WithCulture(ctx context.Context, rc RequestCulture) context.Context {
	return context.WithValue(ctx, cultureKey{}, rc)
}

// CultureFromContext returns the request culture stored on ctx.
func CultureFromContext(ctx context.Context) (RequestCulture, bool) {
	if ctx == nil {
		return RequestCulture{}, false
	}
	rc, ok := ctx.Value(cultureKey{}).(RequestCulture)
	return rc, ok
}

type resolver struct {
	opts      Options
	matcher   language.Matcher
	uiMatcher language.Matcher
	def       language.Tag
}

func newResolver(opts *Options) *resolver {
	if opts == nil {
		opts = NewOptions()
	}
	o := *opts
	def := o.defaultCulture()
	if len(o.SupportedCultures) == 0 {
		o.SupportedCultures = []language.Tag{def}
	}
	if len(o.SupportedUICultures) == 0 {
		o.SupportedUICultures = o.SupportedCultures
	}
	return &resolver{
		opts:      o,
		matcher:   language.NewMatcher(o.SupportedCultures),
		uiMatcher: language.NewMatcher(o.SupportedUICultures),
		def:       def,
	}
}

// match maps requested tags onto a supported culture. Only confident
// matches count so that unrelated languages fall through to the next
// provider.
func (r *resolver) match(m language.Matcher, supported []language.Tag, tags ...language.Tag) (language.Tag, bool) {
	_, idx, conf := m.Match(tags...)
	if conf == language.No {
		return language.Und, false
	}
	return supported[idx], true
}

func (r *resolver) parse(value string) (RequestCulture, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return RequestCulture{}, false
	}
	// cookie format: c=<culture>|uic=<ui culture>, or a bare culture
	culture, ui := value, value
	if strings.Contains(value, "c=") {
		for _, part := range strings.Split(value, "|") {
			k, v, _ := strings.Cut(part, "=")
			switch k {
			case "c":
				culture = v
			case "uic":
				ui = v
			}
		}
	}
	ct, err := language.Parse(culture)
	if err != nil {
		return RequestCulture{}, false
	}
	ut, err := language.Parse(ui)
	if err != nil {
		ut = ct
	}
	c, ok := r.match(r.matcher, r.opts.SupportedCultures, ct)
	if !ok {
		return RequestCulture{}, false
	}
	u, ok := r.match(r.uiMatcher, r.opts.SupportedUICultures, ut)
	if !ok {
		u = c
	}
	return RequestCulture{Culture: c, UICulture: u}, true
}

// Resolve picks the request culture from the query string, then the
// cookie, then Accept-Language, then the default.
func (r *resolver) Resolve(req *http.Request) RequestCulture {
	if key := r.opts.QueryKey; key != "" {
		if rc, ok := r.parse(req.URL.Query().Get(key)); ok {
			rc.Source = "query"
			return rc
		}
	}
	if name := r.opts.CookieName; name != "" {
		if cookie, err := req.Cookie(name); err == nil {
			if rc, ok := r.parse(cookie.Value); ok {
				rc.Source = "cookie"
				return rc
			}
		}
	}
	if accept := strings.TrimSpace(req.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			if c, ok := r.match(r.matcher, r.opts.SupportedCultures, tags...); ok {
				u, ok := r.match(r.uiMatcher, r.opts.SupportedUICultures, tags...)
				if !ok {
					u = c
				}
				return RequestCulture{Culture: c, UICulture: u, Source: "header"}
			}
		}
	}
	return RequestCulture{Culture: r.def, UICulture: r.def, Source: "default"}
}

// CookieValue formats rc the way the cookie provider reads it.
func CookieValue(rc RequestCulture) string {
	return "c=" + rc.Culture.String() + "|uic=" + rc.UICulture.String()
}

// Middleware resolves the request culture, stores it on the request
// context and sets Content-Language.
func Middleware(opts *Options) func(http.Handler) http.Handler {
	r := newResolver(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rc := r.Resolve(req)
			if rc.Source == "query" && r.opts.PersistQueryCulture && r.opts.CookieName != "" {
				http.SetCookie(w, &http.Cookie{
					Name:     r.opts.CookieName,
					Value:    CookieValue(rc),
					Path:     "/",
					MaxAge:   int(r.opts.CookieMaxAge.Seconds()),
					SameSite: r.opts.CookieSameSite,
				})
			}
			w.Header().Set("Content-Language", rc.UICulture.String())
			next.ServeHTTP(w, req.WithContext(WithCulture(req.Context(), rc)))
		})
	}
}
