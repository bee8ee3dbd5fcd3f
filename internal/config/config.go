package config

import "time"

// Config holds runtime configuration for the server.
type Config struct {
	Port    string
	DBPath  string
	HPFloor int
	Log     LogConfig
	Backend BackendConfig
	Session SessionConfig
	Metrics MetricsConfig
}

// LogConfig selects log level and output format ("text" or "json").
type LogConfig struct {
	Level  string
	Format string
}

// BackendConfig points at the upstream results API. An empty BaseURL
// disables refreshing results from upstream.
type BackendConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// SessionConfig controls idle session cleanup.
type SessionConfig struct {
	CleanupInterval time.Duration
	MaxIdle         time.Duration
}

// MetricsConfig controls telemetry export settings.
type MetricsConfig struct {
	Enabled      bool
	Port         string
	OtlpEndpoint string
	ServiceName  string
	OtlpInsecure bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Port:    envOrDefault(envPort, defaultPort),
		DBPath:  envOrDefault(envDBPath, defaultDBPath),
		HPFloor: intEnvOrDefault(envHPFloor, defaultHPFloor),
		Log: LogConfig{
			Level:  envOrDefault(envLogLevel, defaultLogLevel),
			Format: envOrDefault(envLogFormat, defaultLogFormat),
		},
		Backend: BackendConfig{
			BaseURL: envOrDefault(envBackendURL, ""),
			Token:   envOrDefault(envBackendToken, ""),
			Timeout: durationEnvOrDefault(envBackendTimeout, defaultBackendTimeout),
		},
		Session: SessionConfig{
			CleanupInterval: durationEnvOrDefault(envCleanupInterval, defaultCleanupInterval),
			MaxIdle:         durationEnvOrDefault(envMaxIdle, defaultMaxIdle),
		},
		Metrics: MetricsConfig{
			Enabled:      boolEnvOrDefault(envMetricsOn, true),
			Port:         envOrDefault(envMetricsPort, defaultMetricsPort),
			OtlpEndpoint: envOrDefault(envOtelEndpoint, ""),
			ServiceName:  envOrDefault(envOtelService, defaultServiceName),
			OtlpInsecure: boolEnvOrDefault(envOtelInsecure, true),
		},
	}
}
