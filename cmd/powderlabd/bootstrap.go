package main

import (
	"context"
	"fmt"
	"log/slog"

	"powderlab/internal/config"
	"powderlab/internal/daemon"
	"powderlab/internal/logging"
	"powderlab/internal/store"
)

// run builds and serves the daemon until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, path, exists, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if !exists {
		logger.Warn("config file not found, using defaults", slog.String("path", path))
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("powderlabd shutting down")
	return nil
}
