package config

import "time"

const (
	envPort            = "PORT"
	envDBPath          = "DB_PATH"
	envBackendURL      = "BACKEND_BASE_URL"
	envBackendToken    = "BACKEND_TOKEN"
	envBackendTimeout  = "BACKEND_TIMEOUT"
	envCleanupInterval = "SESSION_CLEANUP_INTERVAL"
	envMaxIdle         = "SESSION_MAX_IDLE"
	envHPFloor         = "HP_FLOOR"
	envMetricsOn       = "METRICS_ENABLED"
	envMetricsPort     = "METRICS_PORT"
	envOtelEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService     = "OTEL_SERVICE_NAME"
	envOtelInsecure    = "OTEL_EXPORTER_OTLP_INSECURE"
	envLogLevel        = "LOG_LEVEL"
	envLogFormat       = "LOG_FORMAT"

	defaultPort            = "8080"
	defaultDBPath          = "replays.db"
	defaultBackendTimeout  = 10 * time.Second
	defaultCleanupInterval = time.Minute
	defaultMaxIdle         = time.Hour
	defaultHPFloor         = 100
	defaultMetricsPort     = "9090"
	defaultServiceName     = "agentgames-replay"
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
)
