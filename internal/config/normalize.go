package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	if c.Store.BusyTimeoutMillis <= 0 {
		c.Store.BusyTimeoutMillis = defaultBusyTimeoutMillis
	}
	if c.Store.RetryAttempts <= 0 {
		c.Store.RetryAttempts = defaultRetryAttempts
	}
	if c.Store.RetryInitialBackoffMilli <= 0 {
		c.Store.RetryInitialBackoffMilli = defaultRetryInitialBackoff
	}
	if c.Store.RetryMaxBackoffMillis <= 0 {
		c.Store.RetryMaxBackoffMillis = defaultRetryMaxBackoffMillis
	}

	if c.Blending.BatchLotPrefix = strings.TrimSpace(c.Blending.BatchLotPrefix); c.Blending.BatchLotPrefix == "" {
		c.Blending.BatchLotPrefix = defaultBatchLotPrefix
	}

	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
