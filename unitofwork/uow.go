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

package unitofwork

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/tomoncle/packwork/logging"
	"github.com/tomoncle/packwork/repository"
	"github.com/uptrace/bun"
)

// UnitOfWork owns one optional transaction, a change tracker and a cache of
// repositories by entity type. It is a repository.Session.
type UnitOfWork interface {
	repository.Session

	// BeginTransaction starts a transaction; repositories read through it
	// until it ends.
	BeginTransaction(ctx context.Context) error
	// Commit flushes staged changes and returns the rows affected. Outside a
	// transaction the flush runs in its own transaction.
	Commit(ctx context.Context) (int, error)
	// CommitTransaction flushes staged changes into the active transaction
	// and commits it, rolling back on failure.
	CommitTransaction(ctx context.Context) error
	// RollbackTransaction rolls back the active transaction and drops
	// staged changes.
	RollbackTransaction(ctx context.Context) error
	// Rollback drops staged changes and rolls back any active transaction.
	Rollback() error
	ClearChangeTracker()
	// ExecuteSQL runs a raw statement on the active connection.
	ExecuteSQL(ctx context.Context, query string, args ...interface{}) (int64, error)
	// Do runs fn inside a transaction, committing when it returns nil.
	Do(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	InTransaction() bool
	// Close rolls back an open transaction and releases cached state.
	Close() error

	cachedRepository(typ reflect.Type, create func() interface{}) interface{}
}

type unitOfWork struct {
	db        *bun.DB
	txOptions *sql.TxOptions
	logger    logging.Logger
	tracker   *repository.ChangeTracker

	mu     sync.RWMutex
	tx     *bun.Tx
	closed bool
	repos  sync.Map
}

// New returns a unit of work over db.
func New(db *bun.DB, opts ...Option) UnitOfWork {
	u := &unitOfWork{
		db:      db,
		tracker: repository.NewChangeTracker(),
		logger:  logging.Named("UNITOFWORK"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// GetRepository returns the repository for T, created on first use and
// cached for the life of the unit of work.
func GetRepository[T any](u UnitOfWork) repository.Repository[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return u.cachedRepository(typ, func() interface{} {
		return repository.NewRepository[T](u)
	}).(repository.Repository[T])
}

func (u *unitOfWork) cachedRepository(typ reflect.Type, create func() interface{}) interface{} {
	if r, ok := u.repos.Load(typ); ok {
		return r
	}
	r, _ := u.repos.LoadOrStore(typ, create())
	return r
}

func (u *unitOfWork) Conn() bun.IDB {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.tx != nil {
		return *u.tx
	}
	return u.db
}

func (u *unitOfWork) ChangeTracker() *repository.ChangeTracker {
	return u.tracker
}

// Err is ErrClosed after Close; repositories of a closed unit of work
// refuse reads and writes.
func (u *unitOfWork) Err() error {
	if u.isClosed() {
		return ErrClosed
	}
	return nil
}

func (u *unitOfWork) InTransaction() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.tx != nil
}

func (u *unitOfWork) BeginTransaction(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrClosed
	}
	if u.tx != nil {
		return ErrTransactionActive
	}
	tx, err := u.db.BeginTx(ctx, u.txOptions)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	u.tx = &tx
	u.logger.Debug("transaction started")
	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return 0, ErrClosed
	}
	if !u.tracker.HasChanges() {
		return 0, nil
	}
	if u.tx != nil {
		n, err := u.tracker.SaveChanges(ctx, *u.tx)
		return int(n), err
	}

	var n int64
	err := u.db.RunInTx(ctx, u.txOptions, func(ctx context.Context, tx bun.Tx) error {
		var err error
		n, err = u.tracker.SaveChanges(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	u.logger.Debug("changes saved", "rows", n)
	return int(n), nil
}

func (u *unitOfWork) CommitTransaction(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrClosed
	}
	if u.tx == nil {
		return ErrNoTransaction
	}
	tx := *u.tx
	u.tx = nil

	if _, err := u.tracker.SaveChanges(ctx, tx); err != nil {
		u.tracker.Clear()
		return errors.Join(err, rollback(tx))
	}
	if err := tx.Commit(); err != nil {
		return errors.Join(fmt.Errorf("commit transaction: %w", err), rollback(tx))
	}
	u.logger.Debug("transaction committed")
	return nil
}

func (u *unitOfWork) RollbackTransaction(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrClosed
	}
	if u.tx == nil {
		return ErrNoTransaction
	}
	tx := *u.tx
	u.tx = nil
	u.tracker.Clear()
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	u.logger.Debug("transaction rolled back")
	return nil
}

func (u *unitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracker.Clear()
	if u.tx == nil {
		return nil
	}
	tx := *u.tx
	u.tx = nil
	return rollback(tx)
}

func (u *unitOfWork) ClearChangeTracker() {
	u.tracker.Clear()
}

func (u *unitOfWork) ExecuteSQL(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if u.isClosed() {
		return 0, ErrClosed
	}
	res, err := u.Conn().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (u *unitOfWork) Do(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	if err := u.BeginTransaction(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = u.RollbackTransaction(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, u); err != nil {
		if rbErr := u.RollbackTransaction(ctx); rbErr != nil {
			u.logger.Error("rollback after failure", "error", rbErr)
		}
		return err
	}
	return u.CommitTransaction(ctx)
}

func (u *unitOfWork) Close() error {
	err := u.Rollback()
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	u.repos.Range(func(k, _ interface{}) bool {
		u.repos.Delete(k)
		return true
	})
	return err
}

func (u *unitOfWork) isClosed() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.closed
}

func rollback(tx bun.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
