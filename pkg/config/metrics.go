package config

// MetricsConfig selects the Prometheus collectors. The registry is served on
// the ops HTTP server.
type MetricsConfig struct {
	// EnableHTTPMetrics counts ops server requests and their latency.
	EnableHTTPMetrics bool `env:"METRICS_ENABLE_HTTP" yaml:"enable_http_metrics" default:"true"`
	// EnableBotMetrics counts updates, flow steps, logins and sweeps.
	EnableBotMetrics bool `env:"METRICS_ENABLE_BOT" yaml:"enable_bot_metrics" default:"true"`
}
