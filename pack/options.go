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

import "time"

const (
	DefaultManifestPattern = "**/package.{yaml,yml,json}"
	DefaultResourcePattern = "resources/**/*.{yaml,yml,json}"
)

// Options controls package discovery and localization.
type Options struct {
	// Paths are directories scanned for manifests. When empty every
	// registered package is loaded.
	Paths []string
	// Include restricts loading to the named packages when non-empty.
	Include []string

	EnableLocalizer  bool
	ManifestPatterns []string
	ResourcePatterns []string
	// SharedResourcesDir holds resources visible to every package.
	SharedResourcesDir string

	WatchResources bool
	WatchInterval  time.Duration

	// Settings override manifest settings per package name.
	Settings map[string]map[string]interface{}
}

func NewOptions() *Options {
	return &Options{
		ManifestPatterns:   []string{DefaultManifestPattern},
		ResourcePatterns:   []string{DefaultResourcePattern},
		SharedResourcesDir: "resources",
		WatchInterval:      2 * time.Second,
	}
}

func (o *Options) included(name string) bool {
	if len(o.Include) == 0 {
		return true
	}
	for _, n := range o.Include {
		if n == name {
			return true
		}
	}
	return false
}
