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

	"github.com/tomoncle/packwork/logging"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Factory creates localizers bound to one module's resources.
type Factory struct {
	resources *ResourceManager
	fallback  language.Tag
	logger    logging.Logger
}

// NewFactory returns a factory over resources. fallback is the culture used
// when a context carries none.
func NewFactory(resources *ResourceManager, fallback language.Tag) *Factory {
	return &Factory{
		resources: resources,
		fallback:  fallback,
		logger:    logging.Named("LOCALIZE"),
	}
}

func (f *Factory) Resources() *ResourceManager { return f.resources }

// SetFallback changes the culture used for contexts without one. Call it
// before serving requests.
func (f *Factory) SetFallback(tag language.Tag) { f.fallback = tag }

// Create returns the localizer of module.
func (f *Factory) Create(module string) *Localizer {
	return &Localizer{module: module, factory: f}
}

// Localizer looks up messages for one module in the request culture.
type Localizer struct {
	module  string
	factory *Factory
}

func (l *Localizer) Module() string { return l.module }

// Culture returns the UI culture stored on ctx or the factory fallback.
func (l *Localizer) Culture(ctx context.Context) language.Tag {
	if rc, ok := CultureFromContext(ctx); ok && rc.UICulture != language.Und {
		return rc.UICulture
	}
	return l.factory.fallback
}

// Get returns the message for key in the culture of ctx formatted with
// args. Unknown keys return the key itself.
func (l *Localizer) Get(ctx context.Context, key string, args ...interface{}) string {
	s, _ := l.Lookup(ctx, key, args...)
	return s
}

// Lookup is Get that also reports whether key was found.
func (l *Localizer) Lookup(ctx context.Context, key string, args ...interface{}) (string, bool) {
	culture := l.Culture(ctx)
	tmpl, found := l.factory.resources.Lookup(l.module, culture, key)
	if !found {
		l.factory.logger.Debug("missing localized message", "module", l.module, "culture", culture.String(), "key", key)
		tmpl = key
	}
	if len(args) == 0 {
		return tmpl, found
	}
	return message.NewPrinter(culture).Sprintf(tmpl, args...), found
}

// All returns every message visible to the module in the culture of ctx.
func (l *Localizer) All(ctx context.Context) map[string]string {
	culture := l.Culture(ctx)
	out := make(map[string]string)
	for _, k := range l.factory.resources.Keys(l.module, culture) {
		out[k], _ = l.factory.resources.Lookup(l.module, culture, k)
	}
	return out
}

// Printer returns an x/text printer over the module's catalog for the
// culture of ctx.
func (l *Localizer) Printer(ctx context.Context) (*message.Printer, error) {
	cat, err := l.factory.resources.Catalog(l.module, l.factory.fallback)
	if err != nil {
		return nil, err
	}
	return message.NewPrinter(l.Culture(ctx), message.Catalog(cat)), nil
}
