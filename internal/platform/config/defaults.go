package config

const (
	defaultServerPort = 8080

	defaultCacheMaxEntries = 100

	defaultJobsMaxActive  = 64
	defaultJobsMaxWorkers = 8

	defaultRetryMaxAttempts = 3
	defaultRetryMultiplier  = 2.0

	defaultCircuitBreakerMaxFailures = 5
	defaultCircuitBreakerHalfOpen    = 1
)

// defaults returns the default configuration values.
// These are loaded first and can be overridden by base.yaml, profile YAML, and env vars.
func defaults() map[string]any {
	return map[string]any{
		"server.host":          "0.0.0.0",
		"server.port":          defaultServerPort,
		"server.read_timeout":  "5s",
		"server.write_timeout": "10s",
		"server.idle_timeout":  "120s",

		"log.level":  "info",
		"log.format": "json",

		"cache.default_ttl":      "5m",
		"cache.max_entries":      defaultCacheMaxEntries,
		"cache.cleanup_interval": "60s",

		"jobs.retention":     "10m",
		"jobs.reap_interval": "1m",
		"jobs.max_active":    defaultJobsMaxActive,
		"jobs.max_workers":   defaultJobsMaxWorkers,

		"parser.base_url":                        "http://localhost:8081",
		"parser.timeout":                         "30s",
		"parser.retry.max_attempts":              defaultRetryMaxAttempts,
		"parser.retry.initial_interval":          "100ms",
		"parser.retry.max_interval":              "10s",
		"parser.retry.multiplier":                defaultRetryMultiplier,
		"parser.circuit_breaker.max_failures":    defaultCircuitBreakerMaxFailures,
		"parser.circuit_breaker.timeout":         "30s",
		"parser.circuit_breaker.half_open_limit": defaultCircuitBreakerHalfOpen,
		"parser.rate_limit.requests_per_second":  0,
		"parser.rate_limit.burst_size":           1,

		"telemetry.enabled":  false,
		"telemetry.exporter": "stdout",
		"telemetry.endpoint": "",
	}
}
