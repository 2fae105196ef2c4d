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
	"os"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// Migration is an applied migration record.
type Migration struct {
	bun.BaseModel `bun:"table:packwork_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version with up/down functions.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

var (
	extraMigrations   []MigrationItem
	extraMigrationsMu sync.Mutex
)

// RegisterMigration adds a migration that runs after the built in table
// creation. Versions must sort after "001".
func RegisterMigration(item MigrationItem) {
	extraMigrationsMu.Lock()
	defer extraMigrationsMu.Unlock()
	extraMigrations = append(extraMigrations, item)
}

// MigrationManager coordinates schema migrations and data initialization.
type MigrationManager struct {
	db          *bun.DB
	logger      Logger
	registry    ModelRegistry
	environment string
	sqlRootPath string
	seedOnRun   bool
}

// NewMigrationManager returns a manager over the default model registry.
// The environment defaults to "development".
func NewMigrationManager(db *bun.DB, logger Logger) *MigrationManager {
	if logger == nil {
		logger = GetLogger()
	}
	return &MigrationManager{
		db:          db,
		logger:      logger,
		registry:    defaultRegistry,
		environment: "development",
	}
}

// Configure applies the data init settings of cfg.
func (mm *MigrationManager) Configure(cfg DataInitConfig) *MigrationManager {
	if cfg.Environment != "" {
		mm.environment = cfg.Environment
	}
	if cfg.Filepath != "" {
		mm.sqlRootPath = cfg.Filepath
	}
	mm.seedOnRun = cfg.AutoInitOnMigration
	return mm
}

// SetEnvironment sets the environment used when initializing data from SQL.
func (mm *MigrationManager) SetEnvironment(env string) {
	mm.environment = env
}

// SetRegistry replaces the model registry whose tables are created.
func (mm *MigrationManager) SetRegistry(r ModelRegistry) {
	mm.registry = r
}

// RunMigrations creates the tracking table if needed and applies every
// pending migration in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range mm.migrations() {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}
	mm.logger.Info("Database migrations completed!")
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (mm *MigrationManager) migrations() []MigrationItem {
	items := []MigrationItem{{
		Version:     "001",
		Name:        "create_base_tables",
		Description: "Create registered model tables",
		Up:          mm.createBaseTables,
		Down:        mm.dropBaseTables,
	}}

	extraMigrationsMu.Lock()
	items = append(items, extraMigrations...)
	extraMigrationsMu.Unlock()

	if mm.seedOnRun {
		items = append(items, MigrationItem{
			Version:     "999",
			Name:        "seed_initial_data",
			Description: "Seed initial data",
			Up: func(ctx context.Context, db bun.IDB) error {
				return mm.seedDataFromSQL(ctx, db)
			},
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Version < items[j].Version
	})
	return items
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	exists, err := mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&Migration{
			Version:     migration.Version,
			Name:        migration.Name,
			AppliedAt:   time.Now(),
			Description: migration.Description,
		}).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

func (mm *MigrationManager) createBaseTables(ctx context.Context, db bun.IDB) error {
	for _, model := range modelInstances(mm.registry) {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %T: %w", model, err)
		}
	}
	return nil
}

func (mm *MigrationManager) dropBaseTables(ctx context.Context, db bun.IDB) error {
	models := modelInstances(mm.registry)
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table %T: %w", models[i], err)
		}
	}
	return nil
}

// InitData seeds data from the SQL files of the configured environment.
func (mm *MigrationManager) InitData(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return mm.seedDataFromSQL(ctx, mm.db)
}

func (mm *MigrationManager) seedDataFromSQL(ctx context.Context, db bun.IDB) error {
	sqlManager := NewSQLInitManager(db, mm.environment)
	if mm.sqlRootPath != "" {
		sqlManager.SetSQLRootPath(mm.sqlRootPath)
	}
	mm.logger.Info("Starting data initialization using SQL files", "environment", mm.environment)
	if err := sqlManager.ExecuteInitialization(ctx); err != nil {
		return fmt.Errorf("SQL file initialization failed: %w", err)
	}
	mm.logger.Info("SQL file initialization completed")
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}

// RollbackMigration runs the Down step of an applied migration and removes
// its record. Migrations without a Down step cannot be rolled back.
func (mm *MigrationManager) RollbackMigration(ctx context.Context, version string) error {
	var target *MigrationItem
	for _, m := range mm.migrations() {
		if m.Version == version {
			target = &m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown migration %s", version)
	}
	if target.Down == nil {
		return fmt.Errorf("migration %s has no down step", version)
	}

	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*Migration)(nil)).
			Where("version = ?", version).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("migration %s is not applied", version)
		}
		return target.Down(ctx, tx)
	})
}
