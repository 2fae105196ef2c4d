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
	"path"

	"gopkg.in/yaml.v3"
)

// Manifest is the package.yaml (or .yml/.json) file that enables a package
// found under one of the scanned paths.
type Manifest struct {
	Name     string `yaml:"name" json:"name"`
	Enabled  *bool  `yaml:"enabled" json:"enabled"`
	Priority *int   `yaml:"priority" json:"priority"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	// Resources are globs relative to the manifest directory.
	Resources []string               `yaml:"resources" json:"resources"`
	Settings  map[string]interface{} `yaml:"settings" json:"settings"`
}

// IsEnabled reports whether the manifest enables its package. Manifests
// enable by default.
func (m *Manifest) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ReadManifest parses name from fsys. YAML is a superset of JSON, so one
// decoder reads both forms. A manifest without a name takes the name of
// its directory.
func ReadManifest(fsys fs.FS, name string) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", name, err)
	}
	if m.Name == "" {
		m.Name = path.Base(path.Dir(name))
	}
	if m.Name == "." || m.Name == "/" {
		return nil, fmt.Errorf("manifest %s has no package name", name)
	}
	return &m, nil
}
