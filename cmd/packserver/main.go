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

// Command packserver serves the compiled-in packages over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomoncle/packwork/config"
	"github.com/tomoncle/packwork/database"
	"github.com/tomoncle/packwork/logging"
	"github.com/tomoncle/packwork/pack"
	"github.com/uptrace/bun"

	_ "github.com/tomoncle/packwork/internal/notes"
)

var log = logging.Named("PACKSERVER")

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()

	db, err := database.InitDB(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			log.Warn("close database failed", "error", err)
		}
	}()

	var hostOpts []pack.HostOption
	if cfg.Server.EnableTracing {
		hostOpts = append(hostOpts, pack.WithTracing(cfg.Server.TracingName))
	}
	host := pack.NewHost(hostOpts...)
	defer func() { _ = host.Close() }()

	pack.AddInstance[*bun.DB](host.Services, db)
	if err := host.AddPackages(cfg.PackOptions); err != nil {
		return fmt.Errorf("add packages: %w", err)
	}
	handler, err := host.UsePackages(cfg.LocalizeOptions)
	if err != nil {
		return fmt.Errorf("use packages: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := database.GetHealthStatus(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"database": status,
			"pool":     database.GetDatabaseStats(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
