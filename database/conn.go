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
	"fmt"
	"sync"

	"github.com/uptrace/bun"
)

var (
	globalMu      sync.RWMutex
	globalManager Manager
	globalConfig  *Config
)

// GetDB returns the process wide Bun database, or nil before InitDB.
func GetDB() *bun.DB {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalManager == nil {
		return nil
	}
	return globalManager.GetDB()
}

// GetDatabaseManager returns the process wide database manager.
func GetDatabaseManager() Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// InitDB connects the process wide database, migrating on startup when the
// configuration asks for it.
func InitDB(ctx context.Context, cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	return InitDatabaseWithOptions(ctx, cfg, cfg.DataMigrateConfig.EnableMigrateOnStartup)
}

// InitDatabaseWithOptions initializes the process wide database and
// optionally runs migrations and seeds data.
func InitDatabaseWithOptions(ctx context.Context, cfg *Config, runMigrations bool) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	manager, err := NewManager(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := manager.GetDB()
	db.RegisterModel(RegisteredModelInstances()...)

	if runMigrations {
		mm := NewMigrationManager(db, GetLogger()).Configure(cfg.DataInitConfig)
		if err := mm.RunMigrations(ctx); err != nil {
			_ = manager.Disconnect()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	globalMu.Lock()
	previous := globalManager
	globalManager = manager
	globalConfig = cfg
	globalMu.Unlock()
	if previous != nil {
		_ = previous.Disconnect()
	}

	if cfg.DataInitConfig.AutoInitOnStartup {
		if err := InitData(ctx); err != nil {
			return nil, err
		}
	}
	GetLogger().Info("Database initialization completed!")
	return db, nil
}

// CloseDB closes the process wide database connection.
func CloseDB() error {
	globalMu.Lock()
	manager := globalManager
	globalManager = nil
	globalMu.Unlock()
	if manager == nil {
		return nil
	}
	return manager.Disconnect()
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	manager := GetDatabaseManager()
	if manager == nil {
		return &HealthStatus{LastError: "Database not initialized"}
	}
	return manager.HealthCheck(ctx)
}

// GetDatabaseStats returns process wide database statistics.
func GetDatabaseStats() *DBStats {
	manager := GetDatabaseManager()
	if manager == nil {
		return &DBStats{}
	}
	return manager.GetStats()
}

// RunMigrations executes database migrations on the process wide database.
func RunMigrations(ctx context.Context) error {
	manager := GetDatabaseManager()
	if manager == nil {
		return fmt.Errorf("database not initialized")
	}
	return manager.RunMigrations(ctx)
}

// InitData seeds data for the configured environment, "prod" when unset.
func InitData(ctx context.Context) error {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()

	env := "prod"
	if cfg != nil && cfg.DataInitConfig.Environment != "" {
		env = cfg.DataInitConfig.Environment
	}
	return InitDataWithSQL(ctx, env)
}

// InitDataWithSQL seeds data by executing the SQL files of environment.
func InitDataWithSQL(ctx context.Context, environment string) error {
	db := GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()

	sqlManager := NewSQLInitManager(db, environment)
	if cfg != nil && cfg.DataInitConfig.Filepath != "" {
		sqlManager.SetSQLRootPath(cfg.DataInitConfig.Filepath)
	}
	return sqlManager.ExecuteInitialization(ctx)
}
