package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"allsky/internal/catalog"
	"allsky/internal/config"
	"allsky/internal/deps"
	"allsky/internal/logging"
	"allsky/internal/metrics"
	"allsky/internal/queue"
	"allsky/internal/worker"
)

// run loads configuration, opens both stores and drives the worker until it
// stops.
func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return runWithConfig(ctx, cfg, logger, prometheus.NewRegistry())
}

func runWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) error {
	for _, missing := range deps.Missing(deps.CheckBinaries(ctx, deps.Requirements(cfg))) {
		logging.WarnWithContext(logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, "builds needing it will fail"),
		)
	}

	cat, err := catalog.Open(cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	camera, err := cat.RegisterCamera(ctx, cfg.Camera.Name)
	if err != nil {
		return fmt.Errorf("register camera: %w", err)
	}

	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Error(err))
			}
		}()
		logger.Info("metrics endpoint enabled", logging.String("bind", cfg.Metrics.Bind))
	}

	w := worker.New(cfg, store, cat, camera.ID, logger, worker.WithMetrics(m))
	if err := w.Run(ctx); err != nil {
		if errors.Is(err, worker.ErrBuildInProgress) {
			logging.ErrorWithContext(logger, "another build holds the lock", "build_in_progress",
				logging.String("lock", cfg.Paths.LockFile),
				logging.String(logging.FieldErrorHint, "wait for the running build or remove a stale lock holder"),
			)
		}
		return err
	}
	logger.Info("allskyd shutting down")
	return nil
}
