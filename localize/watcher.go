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

package localize

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
	"github.com/tomoncle/packwork/logging"
)

// Watcher reloads resource files into a ResourceManager when they change
// on disk.
type Watcher struct {
	resources *ResourceManager
	watcher   *argus.Watcher
	logger    logging.Logger

	mu      sync.Mutex
	running bool
	// OnReload, when set, is called after each reload attempt.
	OnReload func(path string, err error)
}

// NewWatcher polls every tracked source of resources at interval.
func NewWatcher(resources *ResourceManager, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	w := &Watcher{resources: resources, logger: logging.Named("LOCALIZE")}
	w.watcher = argus.New(argus.Config{
		PollInterval:         interval,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, path string) {
			w.logger.Error("resource watch error", "error", err, "file", path)
		},
	})
	return w
}

// Start watches every source currently tracked by the resource manager.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("resource watcher already running")
	}
	for _, p := range w.resources.Sources() {
		if err := w.watcher.Watch(p, w.handle); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}
	if err := w.watcher.Start(); err != nil {
		return fmt.Errorf("start resource watcher: %w", err)
	}
	w.running = true
	return nil
}

func (w *Watcher) handle(event argus.ChangeEvent) {
	err := w.resources.Reload(event.Path, event.IsDelete)
	if err != nil {
		w.logger.Warn("resource reload failed", "file", event.Path, "error", err)
	} else {
		w.logger.Info("resource reloaded", "file", event.Path, "deleted", event.IsDelete)
	}
	if w.OnReload != nil {
		w.OnReload(event.Path, err)
	}
}

// Stop ends watching. Stopping a watcher that is not running is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	return w.watcher.Stop()
}
