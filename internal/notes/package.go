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

// Package notes is a sample package serving a small notes API.
package notes

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/tomoncle/packwork/pack"
	"github.com/tomoncle/packwork/unitofwork"
	"github.com/uptrace/bun"
)

//go:embed resources
var resources embed.FS

// Name is the package name and default route prefix.
const Name = "notes"

// Settings is the settings section of the notes package.
type Settings struct {
	PageSize       int `mapstructure:"page_size"`
	MaxTitleLength int `mapstructure:"max_title_length"`
}

type Package struct{}

func init() {
	pack.Register(Package{})
}

func (Package) Name() string { return Name }

func (Package) Priority() int { return 10 }

func (Package) Resources() fs.FS {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		panic(err)
	}
	return sub
}

// ConfigureServices binds the notes settings and a request scoped unit of
// work. The host must register the *bun.DB.
func (Package) ConfigureServices(s *pack.Services) error {
	if !pack.Has[*bun.DB](s) {
		return fmt.Errorf("notes requires a *bun.DB service")
	}
	pack.BindConfiguration[Settings](s, Name)
	pack.AddScoped(s, func(sc *pack.Scope) (unitofwork.UnitOfWork, error) {
		db, err := pack.Resolve[*bun.DB](sc)
		if err != nil {
			return nil, err
		}
		return unitofwork.New(db), nil
	})
	return nil
}

func (Package) MapRoutes(r *pack.Router) error {
	h := handler{}
	r.HandleFunc("GET /{$}", h.list)
	r.HandleFunc("POST /{$}", h.create)
	r.HandleFunc("GET /{id}", h.get)
	r.HandleFunc("PUT /{id}", h.update)
	r.HandleFunc("DELETE /{id}", h.remove)
	return nil
}
