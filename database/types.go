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
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/uptrace/bun"
)

// Manager owns one bun connection: it opens and closes it, reports health
// and pool statistics, and reconnects when a monitored check fails.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	InitData(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus is the outcome of one ping against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats is a copy of sql.DBStats.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

func statsOf(s sql.DBStats) *DBStats {
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

// ConnectionConfig describes one database connection and its pool. Fields
// with an env tag can be overridden by OverrideFromEnv.
type ConnectionConfig struct {
	// Type is mysql, postgres or sqlite; postgresql and sqlite3 are aliases.
	Type     string `yaml:"type" env:"DB_TYPE"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	Username string `yaml:"username" env:"DB_USERNAME"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"DB_NAME"`
	// DSN replaces the generated data source name when set.
	DSN     string `yaml:"dsn" env:"DB_DSN"`
	SSLMode string `yaml:"sslmode" env:"DB_SSLMODE"`
	Charset string `yaml:"charset"`

	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`

	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	EnableReconnect     bool          `yaml:"enable_reconnect" env:"DB_ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration `yaml:"reconnect_interval" env:"DB_RECONNECT_INTERVAL"`
	MaxReconnectTries   int           `yaml:"max_reconnect_tries"`

	EnableQueryLog bool          `yaml:"enable_query_log" env:"DB_ENABLE_QUERY_LOG"`
	SlowQueryTime  time.Duration `yaml:"slow_query_time"`
}

// OverrideFromEnv applies DB_* environment variables to cfg. Unset
// variables leave the configured value untouched.
func OverrideFromEnv(cfg *ConnectionConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse database env: %w", err)
	}
	return nil
}

type DataMigrateConfig struct {
	EnableMigrateOnStartup bool `yaml:"enable_migrate_on_startup" env:"DB_MIGRATE_ON_STARTUP"`
}

// DataInitConfig selects the seed SQL files and when they run.
type DataInitConfig struct {
	AutoInitOnStartup   bool   `yaml:"auto_init_on_startup"`
	AutoInitOnMigration bool   `yaml:"auto_init_on_migration"`
	Filepath            string `yaml:"filepath"`
	Environment         string `yaml:"environment" env:"APP_ENV"`
}

type Config struct {
	ConnectionConfig  ConnectionConfig  `yaml:"connection"`
	DataMigrateConfig DataMigrateConfig `yaml:"migrate"`
	DataInitConfig    DataInitConfig    `yaml:"init"`
}

// DefaultConnectionConfig returns pool, timeout and reconnect defaults with
// no database type selected.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     30 * time.Minute,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		HealthCheckInterval: 5 * time.Minute,
		EnableReconnect:     true,
		ReconnectInterval:   5 * time.Second,
		MaxReconnectTries:   3,
		SlowQueryTime:       2 * time.Second,
	}
}
