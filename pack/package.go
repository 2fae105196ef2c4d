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
	"fmt"
	"io/fs"
	"sort"
	"sync"
)

// Package is a unit of server functionality identified by name.
type Package interface {
	Name() string
}

// ServiceConfigurer is implemented by packages that register services.
type ServiceConfigurer interface {
	ConfigureServices(services *Services) error
}

// RouteMapper is implemented by packages that serve HTTP endpoints. The
// router is already scoped to the package's route prefix.
type RouteMapper interface {
	MapRoutes(router *Router) error
}

// Prioritized orders packages; lower values load first.
type Prioritized interface {
	Priority() int
}

// ResourceProvider is implemented by packages that embed localization
// files.
type ResourceProvider interface {
	Resources() fs.FS
}

// Registry holds the packages compiled into the binary.
type Registry struct {
	mu       sync.RWMutex
	packages map[string]Package
}

func NewRegistry() *Registry {
	return &Registry{packages: make(map[string]Package)}
}

// Register adds p. Names must be unique and non-empty.
func (r *Registry) Register(p Package) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("pack: package must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.packages[p.Name()]; dup {
		return fmt.Errorf("pack: package %q registered twice", p.Name())
	}
	r.packages[p.Name()] = p
	return nil
}

func (r *Registry) Get(name string) (Package, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[name]
	return p, ok
}

// Packages returns the registered packages sorted by name.
func (r *Registry) Packages() []Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Package, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

var defaultRegistry = NewRegistry()

// Register adds p to the process wide registry. It is meant to be called
// from init and panics on an invalid or duplicate package.
func Register(p Package) {
	if err := defaultRegistry.Register(p); err != nil {
		panic(err)
	}
}

// DefaultRegistry returns the registry used by Register.
func DefaultRegistry() *Registry { return defaultRegistry }
