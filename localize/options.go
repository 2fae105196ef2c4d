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
	"net/http"
	"time"

	"golang.org/x/text/language"
)

const (
	DefaultQueryKey   = "culture"
	DefaultCookieName = "packwork_culture"
)

// Options configures request culture resolution.
type Options struct {
	SupportedCultures   []language.Tag
	SupportedUICultures []language.Tag
	DefaultCulture      language.Tag

	// QueryKey names the query parameter that selects a culture.
	QueryKey string
	// CookieName names the cookie that remembers a culture. Empty disables
	// the cookie provider.
	CookieName string
	// PersistQueryCulture stores a culture chosen by query in the cookie.
	PersistQueryCulture bool
	CookieMaxAge        time.Duration
	CookieSameSite      http.SameSite
}

// NewOptions returns options with no cultures and the default query key
// and cookie name.
func NewOptions() *Options {
	return &Options{
		DefaultCulture: language.Und,
		QueryKey:       DefaultQueryKey,
		CookieName:     DefaultCookieName,
		CookieMaxAge:   365 * 24 * time.Hour,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// AddSupportedCultures appends cultures; names that do not parse are skipped.
func (o *Options) AddSupportedCultures(names ...string) *Options {
	o.SupportedCultures = appendTags(o.SupportedCultures, names)
	return o
}

// AddSupportedUICultures appends UI cultures; names that do not parse are
// skipped.
func (o *Options) AddSupportedUICultures(names ...string) *Options {
	o.SupportedUICultures = appendTags(o.SupportedUICultures, names)
	return o
}

// SetDefaultCulture sets the culture used when nothing else matches. It is
// added to the supported lists when missing.
func (o *Options) SetDefaultCulture(name string) *Options {
	tag, err := language.Parse(name)
	if err != nil {
		return o
	}
	o.DefaultCulture = tag
	if !containsTag(o.SupportedCultures, tag) {
		o.SupportedCultures = append([]language.Tag{tag}, o.SupportedCultures...)
	}
	if !containsTag(o.SupportedUICultures, tag) {
		o.SupportedUICultures = append([]language.Tag{tag}, o.SupportedUICultures...)
	}
	return o
}

func (o *Options) defaultCulture() language.Tag {
	switch {
	case o.DefaultCulture != language.Und:
		return o.DefaultCulture
	case len(o.SupportedCultures) > 0:
		return o.SupportedCultures[0]
	default:
		return language.English
	}
}

func appendTags(tags []language.Tag, names []string) []language.Tag {
	for _, name := range names {
		tag, err := language.Parse(name)
		if err != nil || containsTag(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

func containsTag(tags []language.Tag, tag language.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
