package testsupport

import (
	"path/filepath"
	"testing"

	"powderlab/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, applies any provided options, and creates the
// data and log directories so path checks pass without a daemon start.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = "test-token"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("create test directories: %v", err)
	}

	return &cfg
}

// WithRetryBudget tunes the lock-conflict retry loop for contention tests.
func WithRetryBudget(attempts, initialBackoffMillis, maxBackoffMillis int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Store.RetryAttempts = attempts
		cfg.Store.RetryInitialBackoffMilli = initialBackoffMillis
		cfg.Store.RetryMaxBackoffMillis = maxBackoffMillis
	}
}

// WithTolerance overrides the default material-input tolerance.
func WithTolerance(percent float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Blending.DefaultTolerancePercent = percent
	}
}
