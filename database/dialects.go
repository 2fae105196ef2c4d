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

package database

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// backend describes how one database type is opened.
type backend struct {
	driver  string
	dialect func() schema.Dialect
	dsn     func(cfg *ConnectionConfig) string
	// singleConn pins the pool to one connection.
	singleConn bool
}

var backends = map[string]backend{
	"mysql": {
		driver:  "mysql",
		dialect: func() schema.Dialect { return mysqldialect.New() },
		dsn:     mysqlDSN,
	},
	"postgres": {
		driver:  "postgres",
		dialect: func() schema.Dialect { return pgdialect.New() },
		dsn:     postgresDSN,
	},
	"sqlite": {
		driver:     sqliteshim.ShimName,
		dialect:    func() schema.Dialect { return sqlitedialect.New() },
		dsn:        sqliteDSN,
		singleConn: true,
	},
}

var typeAliases = map[string]string{
	"postgresql": "postgres",
	"sqlite3":    "sqlite",
}

// CanonicalType maps a configured type to one of SupportedTypes, or ""
// when the type is unknown.
func CanonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if alias, ok := typeAliases[t]; ok {
		t = alias
	}
	if _, ok := backends[t]; !ok {
		return ""
	}
	return t
}

// SupportedTypes lists the canonical database types.
func SupportedTypes() []string {
	out := make([]string, 0, len(backends))
	for t := range backends {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func lookupBackend(cfg *ConnectionConfig) (backend, error) {
	t := CanonicalType(cfg.Type)
	if t == "" {
		return backend{}, fmt.Errorf("unsupported database type %q, supported types: %v", cfg.Type, SupportedTypes())
	}
	return backends[t], nil
}

// BuildDSN resolves the database/sql driver name, data source name and bun
// dialect for cfg. A non-empty cfg.DSN is used verbatim.
func BuildDSN(cfg *ConnectionConfig) (string, string, schema.Dialect, error) {
	b, err := lookupBackend(cfg)
	if err != nil {
		return "", "", nil, err
	}
	dsn := cfg.DSN
	if dsn == "" {
		dsn = b.dsn(cfg)
	}
	return b.driver, dsn, b.dialect(), nil
}

func mysqlDSN(cfg *ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	mc.Params = map[string]string{"charset": charset}
	return mc.FormatDSN()
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sqliteDSN treats DBName as a file name; an empty name or ":memory:" opens
// a shared in-memory database.
func sqliteDSN(cfg *ConnectionConfig) string {
	switch name := cfg.DBName; {
	case name == "" || name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasSuffix(name, ".db"):
		return name
	default:
		return name + ".db"
	}
}
