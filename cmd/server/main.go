// Competo - Multi-Tenant Competency Assessment Platform
// Copyright 2026 Competo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/competo/competo

// Command server runs the Competo authorization and governance service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/competo/competo/internal/api"
	"github.com/competo/competo/internal/approval"
	"github.com/competo/competo/internal/audit"
	"github.com/competo/competo/internal/config"
	"github.com/competo/competo/internal/guard"
	"github.com/competo/competo/internal/logging"
	"github.com/competo/competo/internal/rbac"
	"github.com/competo/competo/internal/security"
	"github.com/competo/competo/internal/store"
	"github.com/competo/competo/internal/token"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Bool("audit_enabled", cfg.Audit.Enabled).
		Msg("Starting Competo")

	// Select the principal store. Production deployments point
	// DATABASE_URL at PostgreSQL; without it the in-memory store keeps
	// development and tests self-contained.
	var (
		st store.Store
		pg *store.PostgresStore
	)
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err = store.Open(ctx, &cfg.Database)
		cancel()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to database")
		}
		st = pg
		logging.Info().Msg("Connected to PostgreSQL")
	} else {
		if cfg.IsProduction() {
			logging.Fatal().Msg("DATABASE_URL is required in production")
		}
		st = store.NewMemoryStore()
		logging.Warn().Msg("No database configured, using in-memory store")
	}
	defer func() {
		if pg != nil {
			if err := pg.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing database")
			}
		}
	}()

	// Audit sink follows the store: durable when PostgreSQL is present,
	// in-memory otherwise, optionally teed to the log stream.
	var sink audit.Sink
	if pg != nil {
		sink = audit.NewPostgresSink(pg.DB())
	} else {
		sink = audit.NewMemorySink()
	}
	if cfg.Audit.LogToStdout {
		sink = audit.NewLogSink(sink)
	}
	recorder := audit.NewRecorder(sink, cfg.Audit.BufferSize, cfg.Audit.Enabled)
	defer recorder.Close()

	tokens, err := token.NewManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	checker, err := rbac.NewChecker()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load authorization policy")
	}

	machine := approval.NewMachine(st, st, recorder)

	pipeline := security.NewPipeline(cfg, tokens)
	defer pipeline.Close()

	gd := guard.New(tokens, st, checker, cfg.Database.LookupTimeout)

	handler := api.NewHandler(st, tokens, machine, recorder)
	router := api.NewRouter(handler, pipeline, gd)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	// In-flight requests get a bounded window to finish; the deferred
	// recorder.Close drains any buffered audit records afterwards.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}
