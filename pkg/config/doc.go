// Package config loads application configuration.
//
// Configuration resolves in three layers, lowest precedence first:
//
//  1. Built-in defaults
//  2. An optional YAML file pointed at by HUDDLE_CONFIG_FILE
//  3. HUDDLE_* environment variables
//
// Environment variables:
//
//	HUDDLE_HOST                     Server bind host (default 0.0.0.0)
//	HUDDLE_PORT                     Server port (default 8080)
//	HUDDLE_BASE_URL                 Public base URL used in invite share links
//	HUDDLE_HEALTH_PORT              Health/metrics port (default 9090)
//	HUDDLE_POSTGRES_URL             PostgreSQL connection URL (required)
//	HUDDLE_REDIS_URL                Redis address; empty disables caching
//	HUDDLE_LOG_LEVEL                debug | info | warn | error
//	HUDDLE_METRICS_ENABLED          Enable the Prometheus endpoint
//	HUDDLE_INVITE_CLEANUP_SCHEDULE  Cron expression for the invite sweep
package config
