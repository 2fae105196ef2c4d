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
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/tomoncle/packwork/localize"
	"github.com/tomoncle/packwork/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/language"
)

// ErrPackagesNotAdded is returned by UsePackages before AddPackages.
var ErrPackagesNotAdded = errors.New("pack: AddPackages must be called before UsePackages")

// Host builds the HTTP application from the loaded packages.
type Host struct {
	Services *Services

	mux       *http.ServeMux
	registry  *Registry
	manager   *Manager
	localizer *localize.Factory
	watcher   *localize.Watcher
	tracing   string
	logger    logging.Logger
}

type HostOption func(*Host)

// WithRegistry loads packages from r instead of the default registry.
func WithRegistry(r *Registry) HostOption {
	return func(h *Host) { h.registry = r }
}

func WithMux(mux *http.ServeMux) HostOption {
	return func(h *Host) { h.mux = mux }
}

// WithTracing wraps the handler in OpenTelemetry HTTP instrumentation
// named operation.
func WithTracing(operation string) HostOption {
	return func(h *Host) { h.tracing = operation }
}

func WithHostLogger(l logging.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

func NewHost(opts ...HostOption) *Host {
	h := &Host{
		Services: NewServices(),
		mux:      http.NewServeMux(),
		registry: defaultRegistry,
		logger:   logging.Named("PACK"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Mux() *http.ServeMux { return h.mux }

// Manager returns the discovery result, nil before AddPackages.
func (h *Host) Manager() *Manager { return h.manager }

// Localizer returns the localizer factory, nil unless localization is on.
func (h *Host) Localizer() *localize.Factory { return h.localizer }

// AddPackages discovers packages and lets each one register its services.
// Every package is configured even when an earlier one fails; the errors
// are returned together.
func (h *Host) AddPackages(configure ...func(*Options)) error {
	opts := NewOptions()
	for _, fn := range configure {
		fn(opts)
	}
	manager, err := NewManager(opts, h.registry)
	if err != nil {
		return err
	}
	h.manager = manager
	AddInstance(h.Services, manager)

	var result *multierror.Error
	for _, desc := range manager.GetPacks() {
		c, ok := desc.Package.(ServiceConfigurer)
		if !ok {
			continue
		}
		if err := c.ConfigureServices(h.Services); err != nil {
			result = multierror.Append(result, fmt.Errorf("configure services of %s: %w", desc.Name, err))
			continue
		}
		h.logger.Debug("package services configured", "package", desc.Name)
	}

	if opts.EnableLocalizer {
		h.localizer = localize.NewFactory(localize.NewResourceManager(), language.MustParse("zh-CN"))
		AddInstance(h.Services, h.localizer)
		AddInstance(h.Services, h.localizer.Resources())
	}
	return result.ErrorOrNil()
}

// UsePackages loads localization resources, maps the routes of every
// package below its prefix and returns the application handler.
func (h *Host) UsePackages(setup ...func(*localize.Options)) (http.Handler, error) {
	if h.manager == nil {
		return nil, ErrPackagesNotAdded
	}
	opts := h.manager.GetPackOptions()

	var locOpts *localize.Options
	if opts.EnableLocalizer {
		var err error
		if locOpts, err = h.useLocalization(opts, setup); err != nil {
			return nil, err
		}
	}

	var result *multierror.Error
	for _, desc := range h.manager.GetPacks() {
		m, ok := desc.Package.(RouteMapper)
		if !ok {
			continue
		}
		if err := m.MapRoutes(NewRouter(h.mux, desc.RoutePrefix())); err != nil {
			result = multierror.Append(result, fmt.Errorf("map routes of %s: %w", desc.Name, err))
			continue
		}
		h.logger.Info("package loaded", "package", desc.Name, "prefix", desc.RoutePrefix())
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	var handler http.Handler = h.mux
	if locOpts != nil {
		handler = localize.Middleware(locOpts)(handler)
	}
	handler = h.Services.Middleware(handler)
	if h.tracing != "" {
		handler = otelhttp.NewHandler(handler, h.tracing)
	}
	return handler, nil
}

func (h *Host) useLocalization(opts *Options, setup []func(*localize.Options)) (*localize.Options, error) {
	resources := h.localizer.Resources()
	for _, desc := range h.manager.GetPacks() {
		if err := loadPackResources(resources, desc); err != nil {
			return nil, err
		}
	}
	if opts.SharedResourcesDir != "" {
		if err := resources.LoadSharedResources(opts.SharedResourcesDir); err != nil {
			return nil, err
		}
	}

	locOpts := localize.NewOptions().
		AddSupportedCultures("zh-CN", "en-US").
		AddSupportedUICultures("zh-CN", "en-US").
		SetDefaultCulture("zh-CN")
	for _, fn := range setup {
		fn(locOpts)
	}
	h.localizer.SetFallback(locOpts.DefaultCulture)

	if opts.WatchResources && len(resources.Sources()) > 0 {
		h.watcher = localize.NewWatcher(resources, opts.WatchInterval)
		if err := h.watcher.Start(); err != nil {
			return nil, err
		}
	}
	return locOpts, nil
}

func loadPackResources(resources *localize.ResourceManager, desc *Descriptor) error {
	if p, ok := desc.Package.(ResourceProvider); ok && p.Resources() != nil {
		fsys := p.Resources()
		files, err := doublestar.Glob(fsys, localize.ResourcePattern)
		if err != nil {
			return fmt.Errorf("glob embedded resources of %s: %w", desc.Name, err)
		}
		if err := resources.LoadModuleResources(desc.Name, fsys, files); err != nil {
			return err
		}
	}
	if desc.Dir == "" || len(desc.ResourceFiles) == 0 {
		return nil
	}

	fsys := os.DirFS(desc.Dir)
	if err := resources.LoadModuleResources(desc.Name, fsys, desc.ResourceFiles); err != nil {
		return err
	}
	for _, name := range desc.ResourceFiles {
		resources.TrackSource(filepath.Join(desc.Dir, filepath.FromSlash(name)), desc.Name, fsys, name)
	}
	return nil
}

// Close stops the resource watcher and closes the root service scope.
func (h *Host) Close() error {
	var errs []error
	if h.watcher != nil {
		errs = append(errs, h.watcher.Stop())
	}
	errs = append(errs, h.Services.Root().Close())
	return errors.Join(errs...)
}
