package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work without any config file.
const (
	defaultBridgeURL        = "https://api.storj.io"
	defaultTimeout          = "30s"
	defaultPollInterval     = "10ms"
	defaultParallelRequests = 8
	defaultBandwidthLimit   = "0"
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Bridge:    defaultBridgeConfig(),
		Session:   defaultSessionConfig(),
		Transfers: defaultTransfersConfig(),
		Logging:   defaultLoggingConfig(),
		History:   HistoryConfig{Enabled: true},
	}
}

func defaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:     defaultBridgeURL,
		Timeout: defaultTimeout,
	}
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		PollInterval:     defaultPollInterval,
		ParallelRequests: defaultParallelRequests,
	}
}

func defaultTransfersConfig() TransfersConfig {
	return TransfersConfig{
		BandwidthLimit: defaultBandwidthLimit,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}
