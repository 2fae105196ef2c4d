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

// Package config loads the packserver configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tomoncle/packwork/database"
	"github.com/tomoncle/packwork/localize"
	"github.com/tomoncle/packwork/logging"
	"github.com/tomoncle/packwork/pack"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig           `yaml:"server"`
	Database     database.Config        `yaml:"database"`
	Packages     PackagesConfig         `yaml:"packages"`
	Localization LocalizationConfig     `yaml:"localization"`
	Logging      LoggingConfig          `yaml:"logging"`
	Settings     map[string]interface{} `yaml:"settings"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableTracing   bool          `yaml:"enable_tracing" env:"SERVER_ENABLE_TRACING"`
	TracingName     string        `yaml:"tracing_name"`
}

type PackagesConfig struct {
	Paths              []string                          `yaml:"paths" env:"PACK_PATHS"`
	Include            []string                          `yaml:"include" env:"PACK_INCLUDE"`
	EnableLocalizer    bool                              `yaml:"enable_localizer" env:"PACK_ENABLE_LOCALIZER"`
	SharedResourcesDir string                            `yaml:"shared_resources_dir" env:"PACK_SHARED_RESOURCES"`
	WatchResources     bool                              `yaml:"watch_resources" env:"PACK_WATCH_RESOURCES"`
	WatchInterval      time.Duration                     `yaml:"watch_interval"`
	Settings           map[string]map[string]interface{} `yaml:"settings"`
}

type LocalizationConfig struct {
	SupportedCultures   []string `yaml:"supported_cultures" env:"APP_CULTURES"`
	DefaultCulture      string   `yaml:"default_culture" env:"APP_CULTURE"`
	QueryKey            string   `yaml:"query_key"`
	CookieName          string   `yaml:"cookie_name"`
	PersistQueryCulture bool     `yaml:"persist_query_culture"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"CONSOLE_LOG_FORMAT"`
	// Loggers sets levels of individual named loggers, e.g. DATABASE: debug.
	Loggers map[string]string `yaml:"loggers"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	conn := database.DefaultConnectionConfig()
	conn.Type = "sqlite"
	conn.DBName = "packwork.db"
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			TracingName:     "packserver",
		},
		Database: database.Config{
			ConnectionConfig:  *conn,
			DataMigrateConfig: database.DataMigrateConfig{EnableMigrateOnStartup: true},
			DataInitConfig:    database.DataInitConfig{Filepath: "configs/sql", Environment: "dev"},
		},
		Packages: PackagesConfig{
			EnableLocalizer:    true,
			SharedResourcesDir: "resources",
			WatchInterval:      2 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults and applies environment
// overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if database.CanonicalType(c.Database.ConnectionConfig.Type) == "" {
		return fmt.Errorf("unsupported database type %q, supported types: %v",
			c.Database.ConnectionConfig.Type, database.SupportedTypes())
	}
	return nil
}

// ApplyLogging configures the logging package.
func (c *Config) ApplyLogging() {
	if c.Logging.Format != "" {
		logging.ConfigureFormat(c.Logging.Format)
	}
	if c.Logging.Level != "" {
		logging.ConfigureLevel(c.Logging.Level)
	}
	for name, level := range c.Logging.Loggers {
		logging.NewLogger(name).SetLevel(logging.ParseLevel(level))
	}
}

// PackOptions copies the packages section into pack options.
func (c *Config) PackOptions(o *pack.Options) {
	p := c.Packages
	o.Paths = p.Paths
	o.Include = p.Include
	o.EnableLocalizer = p.EnableLocalizer
	o.SharedResourcesDir = p.SharedResourcesDir
	o.WatchResources = p.WatchResources
	if p.WatchInterval > 0 {
		o.WatchInterval = p.WatchInterval
	}
	o.Settings = p.Settings
}

// LocalizeOptions applies the localization section. Configured cultures
// replace the built in list; without a configured default the first of them
// becomes the default unless the current default is still listed.
func (c *Config) LocalizeOptions(o *localize.Options) {
	l := c.Localization
	if len(l.SupportedCultures) > 0 {
		o.SupportedCultures = nil
		o.SupportedUICultures = nil
		o.AddSupportedCultures(l.SupportedCultures...).AddSupportedUICultures(l.SupportedCultures...)
		if l.DefaultCulture == "" && len(o.SupportedCultures) > 0 && !slices.Contains(o.SupportedCultures, o.DefaultCulture) {
			o.DefaultCulture = o.SupportedCultures[0]
		}
	}
	if l.DefaultCulture != "" {
		o.SetDefaultCulture(l.DefaultCulture)
	}
	if l.QueryKey != "" {
		o.QueryKey = l.QueryKey
	}
	if l.CookieName != "" {
		o.CookieName = l.CookieName
	}
	o.PersistQueryCulture = l.PersistQueryCulture
}
