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
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

var errNotConnected = errors.New("database not connected")

type connManager struct {
	config *ConnectionConfig
	logger Logger

	mu     sync.RWMutex
	db     *bun.DB
	sqlDB  *sql.DB
	status *HealthStatus

	// stopMonitor cancels the health monitor; nil when it is not running.
	stopMonitor context.CancelFunc
}

// NewManager returns a Manager for cfg after applying environment
// overrides. Nothing is opened until Connect.
func NewManager(cfg *ConnectionConfig) (Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := OverrideFromEnv(cfg); err != nil {
		return nil, err
	}
	if _, err := lookupBackend(cfg); err != nil {
		return nil, err
	}
	return &connManager{
		config: cfg,
		logger: GetLogger(),
		status: &HealthStatus{},
	}, nil
}

// Connect opens the pool and pings it. Connecting an open manager is a
// no-op. The health monitor starts when HealthCheckInterval is positive.
func (m *connManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return nil
	}
	if err := m.open(ctx); err != nil {
		m.status = &HealthStatus{LastError: err.Error(), LastCheckTime: time.Now()}
		return err
	}
	if m.config.HealthCheckInterval > 0 && m.stopMonitor == nil {
		monitorCtx, cancel := context.WithCancel(context.Background())
		m.stopMonitor = cancel
		go m.monitor(monitorCtx)
	}
	m.logger.Info("Database connected", "type", CanonicalType(m.config.Type), "host", m.config.Host, "dbname", m.config.DBName)
	return nil
}

// open must be called with mu held.
func (m *connManager) open(ctx context.Context) error {
	b, err := lookupBackend(m.config)
	if err != nil {
		return err
	}
	driver, dsn, dialect, err := BuildDSN(m.config)
	if err != nil {
		return err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	if b.singleConn {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
		sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)
	}

	db := bun.NewDB(sqlDB, dialect)
	db.AddQueryHook(NewQueryHook(
		WithQueryHookEnabled(m.config.EnableQueryLog),
		WithQueryHookWriter(os.Stdout),
	))
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(m.config.SlowQueryTime, m.logger))
	}
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))

	timeout := m.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.db, m.sqlDB = db, sqlDB
	return nil
}

// close must be called with mu held.
func (m *connManager) close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	return err
}

// Disconnect stops the health monitor and closes the pool.
func (m *connManager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopMonitor != nil {
		m.stopMonitor()
		m.stopMonitor = nil
	}
	err := m.close()
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
	} else {
		m.logger.Info("Database connection closed")
	}
	return err
}

// Reconnect replaces the pool. The health monitor keeps running.
func (m *connManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.close(); err != nil {
		m.logger.Warn("Error closing previous connection", "error", err)
	}
	return m.open(ctx)
}

func (m *connManager) conn() (*bun.DB, *sql.DB) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db, m.sqlDB
}

func (m *connManager) Ping(ctx context.Context) error {
	db, _ := m.conn()
	if db == nil {
		return errNotConnected
	}
	return db.PingContext(ctx)
}

func (m *connManager) GetDB() *bun.DB {
	db, _ := m.conn()
	return db
}

func (m *connManager) GetSQLDB() *sql.DB {
	_, sqlDB := m.conn()
	return sqlDB
}

// HealthCheck pings the database and records the result.
func (m *connManager) HealthCheck(ctx context.Context) *HealthStatus {
	db, sqlDB := m.conn()
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}

	if db == nil {
		status.LastError = errNotConnected.Error()
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		status.ResponseTime = time.Since(start)
		status.Healthy = err == nil
		status.Connected = err == nil
		if err != nil {
			status.LastError = err.Error()
		}
		s := sqlDB.Stats()
		status.ActiveConns, status.IdleConns, status.MaxOpenConns = s.InUse, s.Idle, s.MaxOpenConnections
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return status
}

func (m *connManager) monitor(ctx context.Context) {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		status := m.HealthCheck(checkCtx)
		cancel()
		if !status.Healthy && m.config.EnableReconnect {
			m.reconnectLoop(ctx)
		}
	}
}

// reconnectLoop retries Reconnect up to MaxReconnectTries times, waiting
// ReconnectInterval before each attempt.
func (m *connManager) reconnectLoop(ctx context.Context) {
	for try := 1; try <= m.config.MaxReconnectTries; try++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.ReconnectInterval):
		}
		m.logger.Info("Starting database reconnect", "try", try)
		if err := m.Reconnect(ctx); err != nil {
			m.logger.Error("Reconnect failed", "error", err, "try", try)
			continue
		}
		m.logger.Info("Reconnect succeeded", "try", try)
		return
	}
	m.logger.Error("Max reconnect attempts reached", "tries", m.config.MaxReconnectTries)
}

func (m *connManager) GetStats() *DBStats {
	_, sqlDB := m.conn()
	if sqlDB == nil {
		return &DBStats{}
	}
	return statsOf(sqlDB.Stats())
}

func (m *connManager) RunMigrations(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return errNotConnected
	}
	return NewMigrationManager(db, m.logger).RunMigrations(ctx)
}

func (m *connManager) InitData(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return errNotConnected
	}
	return NewMigrationManager(db, m.logger).InitData(ctx)
}

func (m *connManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}
