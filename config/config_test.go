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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/packwork/localize"
	"github.com/tomoncle/packwork/pack"
	"golang.org/x/text/language"
)

const sample = `
server:
  addr: ":9090"
  enable_tracing: true
database:
  connection:
    type: sqlite
    dbname: notes
    slow_query_time: 250ms
  migrate:
    enable_migrate_on_startup: false
packages:
  paths: [./packs]
  include: [notes]
  settings:
    notes:
      page_size: 20
localization:
  supported_cultures: [en-US, fr-FR]
  default_culture: en-US
  query_key: lang
logging:
  level: debug
  loggers:
    DATABASE: warn
settings:
  feature: on
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Server.EnableTracing)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "notes", cfg.Database.ConnectionConfig.DBName)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.ConnectionConfig.SlowQueryTime)
	assert.Equal(t, 100, cfg.Database.ConnectionConfig.MaxOpenConns)
	assert.False(t, cfg.Database.DataMigrateConfig.EnableMigrateOnStartup)
	assert.Equal(t, "dev", cfg.Database.DataInitConfig.Environment)
	assert.Equal(t, []string{"./packs"}, cfg.Packages.Paths)
	assert.True(t, cfg.Packages.EnableLocalizer)
	assert.Equal(t, 20, cfg.Packages.Settings["notes"]["page_size"])
	assert.Equal(t, "warn", cfg.Logging.Loggers["DATABASE"])
	assert.Contains(t, cfg.Settings, "feature")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7000")
	t.Setenv("DB_NAME", "from_env")
	t.Setenv("PACK_INCLUDE", "notes,billing")
	t.Setenv("APP_ENV", "prod")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "from_env", cfg.Database.ConnectionConfig.DBName)
	assert.Equal(t, []string{"notes", "billing"}, cfg.Packages.Include)
	assert.Equal(t, "prod", cfg.Database.DataInitConfig.Environment)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.ConnectionConfig.Type)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("database:\n  connection:\n    type: oracle\n"), 0o644))
	_, err = Load(file)
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestOptionsMapping(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	po := pack.NewOptions()
	cfg.PackOptions(po)
	assert.Equal(t, []string{"notes"}, po.Include)
	assert.Equal(t, "resources", po.SharedResourcesDir)
	assert.Equal(t, 20, po.Settings["notes"]["page_size"])

	lo := localize.NewOptions().AddSupportedCultures("zh-CN").SetDefaultCulture("zh-CN")
	cfg.LocalizeOptions(lo)
	assert.Equal(t, []language.Tag{language.AmericanEnglish, language.MustParse("fr-FR")}, lo.SupportedCultures)
	assert.Equal(t, language.AmericanEnglish, lo.DefaultCulture)
	assert.Equal(t, "lang", lo.QueryKey)
	assert.Equal(t, localize.DefaultCookieName, lo.CookieName)
}

func TestLocalizeOptionsDefaultFollowsCultures(t *testing.T) {
	cfg := Default()
	cfg.Localization.SupportedCultures = []string{"fr-FR", "en-US"}
	cfg.Localization.DefaultCulture = ""

	lo := localize.NewOptions().AddSupportedCultures("zh-CN", "en-US").SetDefaultCulture("zh-CN")
	cfg.LocalizeOptions(lo)
	assert.Equal(t, language.MustParse("fr-FR"), lo.DefaultCulture)
	assert.NotContains(t, lo.SupportedCultures, language.MustParse("zh-CN"))

	lo = localize.NewOptions().AddSupportedCultures("zh-CN", "en-US").SetDefaultCulture("en-US")
	cfg.LocalizeOptions(lo)
	assert.Equal(t, language.AmericanEnglish, lo.DefaultCulture)
}
