package config

const (
	defaultDataDir               = "~/.local/share/powderlab"
	defaultLogDir                = "~/.local/share/powderlab/logs"
	defaultAPIBind               = "127.0.0.1:7512"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultBusyTimeoutMillis     = 5000
	defaultRetryAttempts         = 5
	defaultRetryInitialBackoff   = 10
	defaultRetryMaxBackoffMillis = 200
	defaultTolerancePercent      = 5.0
	defaultBatchLotPrefix        = "BATCH"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			BusyTimeoutMillis:        defaultBusyTimeoutMillis,
			RetryAttempts:            defaultRetryAttempts,
			RetryInitialBackoffMilli: defaultRetryInitialBackoff,
			RetryMaxBackoffMillis:    defaultRetryMaxBackoffMillis,
		},
		Blending: Blending{
			DefaultTolerancePercent: defaultTolerancePercent,
			BatchLotPrefix:          defaultBatchLotPrefix,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
