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
	"io"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var silent atomic.Bool

// EnableBunSqlSilent mutes every query hook installed by this package.
func EnableBunSqlSilent(b bool) {
	silent.Store(b)
}

var (
	tagColor = color.New(color.FgCyan)
	opColors = map[string]*color.Color{
		"SELECT": color.New(color.FgGreen),
		"INSERT": color.New(color.FgBlue),
		"UPDATE": color.New(color.FgYellow),
		"DELETE": color.New(color.FgMagenta),
	}
	opBackgrounds = map[string]*color.Color{
		"SELECT": color.New(color.BgGreen, color.FgHiWhite),
		"INSERT": color.New(color.BgBlue, color.FgHiWhite),
		"UPDATE": color.New(color.BgYellow, color.FgHiWhite),
		"DELETE": color.New(color.BgMagenta, color.FgHiWhite),
	}
	fallbackColor      = color.New(color.FgRed)
	fallbackBackground = color.New(color.BgRed, color.FgHiWhite)
	errorColor         = color.New(color.BgRed)
)

const hookTimeLayout = "2006-01-02 15:04:05.000"

// QueryHook prints every executed statement colored by operation. The
// PACKWORK_SQL environment variable overrides the configured switch:
// "0" or empty disables, "1" logs failures only, "2" logs everything.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

type QueryHookOption func(*QueryHook)

func WithQueryHookEnabled(on bool) QueryHookOption {
	return func(h *QueryHook) { h.enabled = on; h.verbose = on }
}

func WithQueryHookVerbose(on bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = on }
}

func WithQueryHookWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

func WithQueryHookEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{envName: "PACKWORK_SQL", writer: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ bun.QueryHook = (*QueryHook)(nil)

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() {
		return
	}
	enabled, verbose := h.enabled, h.verbose
	if v, ok := os.LookupEnv(h.envName); ok {
		enabled = v != "" && v != "0"
		verbose = v == "2"
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format(hookTimeLayout),
		tagColor.Sprintf("%10s", "[BUN]"),
		fmt.Sprintf("%14s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", pick(opColors, fallbackColor, event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", errorColor.Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

// SlowQueryHook reports successful statements that ran longer than the
// threshold, either to the logger or, when it is nil, to the writer.
// PACKWORK_SQL_SLOW=1 forces it on and any other value off.
type SlowQueryHook struct {
	fromEnv  string
	slowTime time.Duration
	logger   Logger
	writer   io.Writer
}

func NewSlowQueryHook(threshold time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{
		fromEnv:  "PACKWORK_SQL_SLOW",
		slowTime: threshold,
		logger:   logger,
		writer:   os.Stdout,
	}
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() || event.Err != nil || h.slowTime <= 0 {
		return
	}
	if v, ok := os.LookupEnv(h.fromEnv); ok && strings.TrimSpace(v) != "1" {
		return
	}

	duration := time.Since(event.StartTime)
	if duration <= h.slowTime {
		return
	}
	if h.logger != nil {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
		return
	}
	_, _ = fmt.Fprintln(h.writer,
		time.Now().Format(hookTimeLayout),
		color.New(color.FgYellow).Sprintf("%10s", "[BUN_SLOW]"),
		fmt.Sprintf("%14s", duration.Round(time.Microsecond)),
		" ", pick(opBackgrounds, fallbackBackground, event.Operation()).Sprint(event.Query),
	)
}

func pick(m map[string]*color.Color, fallback *color.Color, op string) *color.Color {
	if c, ok := m[op]; ok {
		return c
	}
	return fallback
}
