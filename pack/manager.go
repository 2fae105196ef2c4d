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
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tomoncle/packwork/logging"
)

// Descriptor is a discovered package: where it lives, its manifest and the
// resource files found next to it.
type Descriptor struct {
	Name string
	// Dir is the manifest directory on disk; empty for packages loaded
	// without a manifest.
	Dir string
	// ResourceFiles are slash separated paths relative to Dir.
	ResourceFiles []string
	Manifest      *Manifest
	Package       Package

	settings map[string]interface{}
}

// Priority returns the manifest priority, else the package's own, else 0.
func (d *Descriptor) Priority() int {
	if d.Manifest != nil && d.Manifest.Priority != nil {
		return *d.Manifest.Priority
	}
	if p, ok := d.Package.(Prioritized); ok {
		return p.Priority()
	}
	return 0
}

// RoutePrefix returns the manifest prefix or "/<name>".
func (d *Descriptor) RoutePrefix() string {
	if d.Manifest != nil && d.Manifest.Prefix != "" {
		return d.Manifest.Prefix
	}
	return "/" + d.Name
}

// Settings returns the manifest settings merged with option overrides.
func (d *Descriptor) Settings() map[string]interface{} {
	return d.settings
}

// Manager is the result of package discovery.
type Manager struct {
	options *Options
	packs   []*Descriptor
	byName  map[string]*Descriptor
	logger  logging.Logger
}

// NewManager discovers the packages of registry selected by opts.
func NewManager(opts *Options, registry *Registry) (*Manager, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if registry == nil {
		registry = defaultRegistry
	}
	m := &Manager{
		options: opts,
		byName:  make(map[string]*Descriptor),
		logger:  logging.Named("PACK"),
	}

	var err error
	if len(opts.Paths) == 0 {
		err = m.loadRegistered(registry)
	} else {
		err = m.discover(registry)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(m.packs, func(i, j int) bool {
		pi, pj := m.packs[i].Priority(), m.packs[j].Priority()
		if pi != pj {
			return pi < pj
		}
		return m.packs[i].Name < m.packs[j].Name
	})
	return m, nil
}

func (m *Manager) loadRegistered(registry *Registry) error {
	for _, p := range registry.Packages() {
		if !m.options.included(p.Name()) {
			continue
		}
		m.add(&Descriptor{Name: p.Name(), Package: p})
	}
	return nil
}

// discover loads every manifest matched under the package paths. A file
// matched by several patterns, or reached through overlapping paths, is
// loaded once.
func (m *Manager) discover(registry *Registry) error {
	seen := make(map[string]bool)
	for _, root := range m.options.Paths {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			m.logger.Warn("package path does not exist", "path", root)
			continue
		}
		fsys := os.DirFS(root)
		for _, pattern := range m.options.ManifestPatterns {
			matches, err := doublestar.Glob(fsys, pattern)
			if err != nil {
				return fmt.Errorf("glob %s in %s: %w", pattern, root, err)
			}
			for _, match := range matches {
				file, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(match)))
				if err != nil {
					return err
				}
				if seen[file] {
					continue
				}
				seen[file] = true
				if err := m.loadManifest(registry, root, match); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *Manager) loadManifest(registry *Registry, root, name string) error {
	manifest, err := ReadManifest(os.DirFS(root), name)
	if err != nil {
		return err
	}
	file := filepath.Join(root, filepath.FromSlash(name))

	p, ok := registry.Get(manifest.Name)
	switch {
	case !ok:
		m.logger.Warn("manifest names an unknown package", "package", manifest.Name, "manifest", file)
		return nil
	case !manifest.IsEnabled():
		m.logger.Info("package disabled", "package", manifest.Name)
		return nil
	case !m.options.included(manifest.Name):
		return nil
	}
	if prev, dup := m.byName[manifest.Name]; dup {
		return fmt.Errorf("package %s has manifests in both %s and %s", manifest.Name, prev.Dir, filepath.Dir(file))
	}

	desc := &Descriptor{
		Name:     manifest.Name,
		Dir:      filepath.Dir(file),
		Manifest: manifest,
		Package:  p,
	}
	if desc.ResourceFiles, err = findResources(desc.Dir, m.resourcePatterns(manifest)); err != nil {
		return fmt.Errorf("package %s: %w", manifest.Name, err)
	}
	m.add(desc)
	return nil
}

func (m *Manager) resourcePatterns(manifest *Manifest) []string {
	if len(manifest.Resources) > 0 {
		return manifest.Resources
	}
	return m.options.ResourcePatterns
}

func findResources(dir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, path.Clean(pattern))
		if err != nil {
			return nil, fmt.Errorf("glob resources %s: %w", pattern, err)
		}
		for _, match := range matches {
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *Manager) add(desc *Descriptor) {
	settings := make(map[string]interface{})
	if desc.Manifest != nil {
		for k, v := range desc.Manifest.Settings {
			settings[k] = v
		}
	}
	for k, v := range m.options.Settings[desc.Name] {
		settings[k] = v
	}
	desc.settings = settings

	m.packs = append(m.packs, desc)
	m.byName[desc.Name] = desc
	m.logger.Debug("package discovered", "package", desc.Name, "dir", desc.Dir, "resources", len(desc.ResourceFiles))
}

// GetPacks returns the loaded packages ordered by priority then name.
func (m *Manager) GetPacks() []*Descriptor {
	out := make([]*Descriptor, len(m.packs))
	copy(out, m.packs)
	return out
}

func (m *Manager) GetPack(name string) (*Descriptor, bool) {
	d, ok := m.byName[name]
	return d, ok
}

func (m *Manager) GetPackOptions() *Options {
	return m.options
}
