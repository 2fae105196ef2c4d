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

	"github.com/go-viper/mapstructure/v2"
)

// Configuration is the typed settings section of one package.
type Configuration[T any] struct {
	pack  string
	value T
}

func (c *Configuration[T]) Package() string { return c.pack }

// Value returns the decoded settings.
func (c *Configuration[T]) Value() T { return c.value }

// DecodeSettings decodes settings into a T. Keys match mapstructure tags or
// field names case insensitively; strings convert to numbers and bools.
func DecodeSettings[T any](settings map[string]interface{}) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(settings); err != nil {
		return out, err
	}
	return out, nil
}

// BindConfiguration registers *Configuration[T] as a scoped service built
// from the settings of the package named pack. The *Manager must be
// registered, which Host.AddPackages does.
func BindConfiguration[T any](s *Services, pack string) {
	AddScoped(s, func(sc *Scope) (*Configuration[T], error) {
		m, err := Resolve[*Manager](sc)
		if err != nil {
			return nil, err
		}
		desc, ok := m.GetPack(pack)
		if !ok {
			return nil, fmt.Errorf("configuration for unknown package %s", pack)
		}
		value, err := DecodeSettings[T](desc.Settings())
		if err != nil {
			return nil, fmt.Errorf("decode settings of %s: %w", pack, err)
		}
		return &Configuration[T]{pack: pack, value: value}, nil
	})
}
