// Package config loads dispatch-core configuration from the environment.
package config

import (
	"os"
	"strings"
)

// Config holds everything cmd/proxy needs to wire up a Dispatcher.
type Config struct {
	Port             string
	AvailableServers string
	RedisURL         string
	Algorithm        string
	TraceLevel       string
}

// NewFromEnv reads PORT, AVAILABLE_SERVERS, REDIS_URL, ALGORITHM and
// TRACE_LEVEL, applying defaults for anything unset.
func NewFromEnv() *Config {
	c := &Config{}
	c.Port = getenv("PORT", "8080")
	c.AvailableServers = os.Getenv("AVAILABLE_SERVERS")
	c.RedisURL = getenv("REDIS_URL", "")
	c.Algorithm = normalizeAlgorithm(getenv("ALGORITHM", "least_connection"))
	c.TraceLevel = getenv("TRACE_LEVEL", "info")
	return c
}

// UsesRedis reports whether RedisURL was configured; when empty, the
// in-memory telemetry store is used instead.
func (c *Config) UsesRedis() bool {
	return c.RedisURL != ""
}

// normalizeAlgorithm accepts "location" as an alias for "location_based"
// and lowercases/trims whitespace so env vars set by hand don't silently
// fall back to the default.
func normalizeAlgorithm(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "location" {
		return "location_based"
	}
	return name
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
