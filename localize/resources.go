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
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// ResourcePattern matches the localization files of a package or of the
// shared resource directory.
const ResourcePattern = "**/*.{yaml,yml,json}"

type resourceFile struct {
	tag      language.Tag
	messages map[string]string
}

type resourceSet struct {
	files map[string]resourceFile // by source path
	table map[language.Tag]map[string]string
}

func newResourceSet() *resourceSet {
	return &resourceSet{
		files: make(map[string]resourceFile),
		table: make(map[language.Tag]map[string]string),
	}
}

// rebuild merges the files in path order so later files win.
func (s *resourceSet) rebuild() {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	s.table = make(map[language.Tag]map[string]string)
	for _, p := range paths {
		f := s.files[p]
		msgs, ok := s.table[f.tag]
		if !ok {
			msgs = make(map[string]string)
			s.table[f.tag] = msgs
		}
		for k, v := range f.messages {
			msgs[k] = v
		}
	}
}

func (s *resourceSet) lookup(tag language.Tag, key string) (string, bool) {
	if s == nil {
		return "", false
	}
	msg, ok := s.table[tag][key]
	return msg, ok
}

// ResourceManager holds localized messages per module and a shared table
// used when a module has no entry.
type ResourceManager struct {
	mu      sync.RWMutex
	modules map[string]*resourceSet
	shared  *resourceSet
	sources map[string]source // os path -> origin, for reloads
}

type source struct {
	module string // empty for shared
	fsys   fs.FS
	name   string
}

func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		modules: make(map[string]*resourceSet),
		shared:  newResourceSet(),
		sources: make(map[string]source),
	}
}

// LoadModuleResources reads files from fsys into module's table. The
// culture of each file comes from its name: en-US.yaml or messages.zh-CN.json.
func (m *ResourceManager) LoadModuleResources(module string, fsys fs.FS, files []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.modules[module]
	if !ok {
		set = newResourceSet()
		m.modules[module] = set
	}
	for _, name := range files {
		f, err := readResourceFile(fsys, name)
		if err != nil {
			return fmt.Errorf("module %s: %w", module, err)
		}
		set.files[name] = f
	}
	set.rebuild()
	return nil
}

// LoadSharedResources reads every resource file below root on disk into
// the shared table. A missing root is not an error.
func (m *ResourceManager) LoadSharedResources(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	fsys := os.DirFS(root)
	files, err := doublestar.Glob(fsys, ResourcePattern)
	if err != nil {
		return fmt.Errorf("glob shared resources: %w", err)
	}
	if err := m.LoadSharedFS(fsys, files); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range files {
		m.sources[path.Join(root, name)] = source{fsys: fsys, name: name}
	}
	return nil
}

// LoadSharedFS reads files from fsys into the shared table.
func (m *ResourceManager) LoadSharedFS(fsys fs.FS, files []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range files {
		f, err := readResourceFile(fsys, name)
		if err != nil {
			return fmt.Errorf("shared: %w", err)
		}
		m.shared.files[name] = f
	}
	m.shared.rebuild()
	return nil
}

// TrackSource records that the disk file osPath backs name in module's
// table so that Reload can refresh it.
func (m *ResourceManager) TrackSource(osPath, module string, fsys fs.FS, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[osPath] = source{module: module, fsys: fsys, name: name}
}

// Sources returns the disk paths that can be reloaded.
func (m *ResourceManager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sources))
	for p := range m.sources {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Reload re-reads the file behind osPath. A deleted file drops its messages.
func (m *ResourceManager) Reload(osPath string, deleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[osPath]
	if !ok {
		return fmt.Errorf("untracked resource %s", osPath)
	}
	set := m.shared
	if src.module != "" {
		if set = m.modules[src.module]; set == nil {
			set = newResourceSet()
			m.modules[src.module] = set
		}
	}
	if deleted {
		delete(set.files, src.name)
	} else {
		f, err := readResourceFile(src.fsys, src.name)
		if err != nil {
			return err
		}
		set.files[src.name] = f
	}
	set.rebuild()
	return nil
}

// Lookup finds key for module in culture, trying the module table with the
// culture and then its parents, then the shared table the same way.
func (m *ResourceManager) Lookup(module string, culture language.Tag, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, set := range []*resourceSet{m.modules[module], m.shared} {
		for tag := culture; ; tag = tag.Parent() {
			if msg, ok := set.lookup(tag, key); ok {
				return msg, true
			}
			if tag.IsRoot() {
				break
			}
		}
	}
	return "", false
}

// Keys returns every key known for module in culture, shared keys included.
func (m *ResourceManager) Keys(module string, culture language.Tag) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, set := range []*resourceSet{m.modules[module], m.shared} {
		if set == nil {
			continue
		}
		for tag := culture; ; tag = tag.Parent() {
			for k := range set.table[tag] {
				seen[k] = struct{}{}
			}
			if tag.IsRoot() {
				break
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Catalog builds an x/text catalog for module with shared messages
// overridden by the module's own, usable with message.NewPrinter.
func (m *ResourceManager) Catalog(module string, fallback language.Tag) (catalog.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := catalog.NewBuilder(catalog.Fallback(fallback))
	for _, set := range []*resourceSet{m.shared, m.modules[module]} {
		if set == nil {
			continue
		}
		for tag, msgs := range set.table {
			for k, v := range msgs {
				if err := b.SetString(tag, k, v); err != nil {
					return nil, fmt.Errorf("catalog %s %s: %w", tag, k, err)
				}
			}
		}
	}
	return b, nil
}

func readResourceFile(fsys fs.FS, name string) (resourceFile, error) {
	tag, err := CultureFromFileName(name)
	if err != nil {
		return resourceFile{}, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return resourceFile{}, fmt.Errorf("read %s: %w", name, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return resourceFile{}, fmt.Errorf("parse %s: %w", name, err)
	}
	messages := make(map[string]string)
	flatten("", raw, messages)
	return resourceFile{tag: tag, messages: messages}, nil
}

// flatten turns nested maps into dotted keys: {a: {b: x}} becomes a.b = x.
func flatten(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// CultureFromFileName extracts the culture from the last dotted segment of
// a file name before its extension.
func CultureFromFileName(name string) (language.Tag, error) {
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	tag, err := language.Parse(base)
	if err != nil {
		return language.Und, fmt.Errorf("resource %s: no culture in file name: %w", name, err)
	}
	return tag, nil
}
