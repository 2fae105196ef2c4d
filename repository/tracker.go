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

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"github.com/tomoncle/packwork/types"
	"github.com/uptrace/bun"
)

// EntityState is the pending operation recorded for a tracked entity.
type EntityState int

const (
	Detached EntityState = iota
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Detached"
	}
}

// Entry is one staged write. Entity is a model pointer. Filter is set for
// set based deletes, where Entity is only a typed nil naming the table.
type Entry struct {
	State  EntityState
	Entity interface{}
	Filter *types.QueryFilter
}

func (e *Entry) anonymous() bool { return e.Filter != nil }

// ChangeTracker records staged inserts, updates and deletes in the order
// they were made and flushes them with SaveChanges. Entities are identified
// by pointer.
type ChangeTracker struct {
	mu      sync.Mutex
	entries []*Entry
	byRef   map[interface{}]*Entry
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{byRef: make(map[interface{}]*Entry)}
}

// Track stages entity in state, merging with an existing entry:
//
//	Added    + Modified -> Added
//	Added    + Deleted  -> dropped
//	Modified + Deleted  -> Deleted
//	Deleted  + Modified -> Deleted
//	Deleted  + Added    -> Modified
//
// Tracking as Detached forgets the entity.
func (c *ChangeTracker) Track(state EntityState, entity interface{}) error {
	if isNil(entity) {
		return ErrNilEntity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.byRef[entity]
	if !ok {
		if state == Detached {
			return nil
		}
		e := &Entry{State: state, Entity: entity}
		c.entries = append(c.entries, e)
		c.byRef[entity] = e
		return nil
	}

	switch {
	case state == Detached:
		c.remove(existing)
	case existing.State == Added && state == Deleted:
		c.remove(existing)
	case existing.State == Added, existing.State == Deleted && state == Modified:
	case existing.State == Deleted && state == Added:
		existing.State = Modified
	default:
		existing.State = state
	}
	return nil
}

// TrackDelete stages a set based delete of the rows of model's table that
// match filter. model is usually a typed nil such as (*Note)(nil).
func (c *ChangeTracker) TrackDelete(model interface{}, filter *types.QueryFilter) error {
	if model == nil || filter.IsEmpty() {
		return fmt.Errorf("repository: set based delete needs a model and a filter")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &Entry{State: Deleted, Entity: model, Filter: filter})
	return nil
}

// Detach forgets a tracked entity.
func (c *ChangeTracker) Detach(entity interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byRef[entity]
	if !ok {
		return ErrNotTracked
	}
	c.remove(e)
	return nil
}

// State reports the staged state of entity, Detached when untracked.
func (c *ChangeTracker) State(entity interface{}) EntityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byRef[entity]; ok {
		return e.State
	}
	return Detached
}

func (c *ChangeTracker) remove(target *Entry) {
	delete(c.byRef, target.Entity)
	for i, e := range c.entries {
		if e == target {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Entries returns a snapshot of the staged entries in order.
func (c *ChangeTracker) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = *e
	}
	return out
}

func (c *ChangeTracker) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) > 0
}

// Clear drops every staged entry.
func (c *ChangeTracker) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.byRef = make(map[interface{}]*Entry)
}

// SaveChanges executes the staged entries in order against db and returns
// the summed rows affected. The tracker is cleared only when every entry
// succeeds; callers wanting atomicity pass a transaction.
func (c *ChangeTracker) SaveChanges(ctx context.Context, db bun.IDB) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, e := range c.entries {
		n, err := execEntry(ctx, db, e)
		if err != nil {
			return total, fmt.Errorf("save %s %T: %w", e.State, e.Entity, err)
		}
		total += n
	}
	c.entries = nil
	c.byRef = make(map[interface{}]*Entry)
	return total, nil
}

func execEntry(ctx context.Context, db bun.IDB, e *Entry) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case e.anonymous():
		res, err = db.NewDelete().Model(e.Entity).Where(e.Filter.Schema, e.Filter.Args...).Exec(ctx)
	case e.State == Added:
		res, err = db.NewInsert().Model(e.Entity).Exec(ctx)
	case e.State == Modified:
		res, err = db.NewUpdate().Model(e.Entity).WherePK().Exec(ctx)
	case e.State == Deleted:
		res, err = db.NewDelete().Model(e.Entity).WherePK().Exec(ctx)
	default:
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
