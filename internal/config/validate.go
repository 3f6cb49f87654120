package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateBlending(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.RetryAttempts > 100 {
		return errors.New("store.retry_attempts is unreasonably large (max 100)")
	}
	if c.Store.RetryInitialBackoffMilli > c.Store.RetryMaxBackoffMillis {
		return errors.New("store.retry_initial_backoff_millis must not exceed store.retry_max_backoff_millis")
	}
	return nil
}

func (c *Config) validateBlending() error {
	if c.Blending.DefaultTolerancePercent < 0 || c.Blending.DefaultTolerancePercent > 100 {
		return errors.New("blending.default_tolerance_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
