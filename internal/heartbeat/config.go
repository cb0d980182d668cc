package heartbeat

import (
	"jobclient/internal/config"
	"time"
)

// Retry default - rarely needs tuning. Breaker defaults live in
// pkg/circuitbreaker.
const defaultMaxRetries = 3

// Config holds configuration for the heartbeat reporter.
type Config struct {
	Interval time.Duration // time between heartbeats (default: 10s)
	Window   time.Duration // lease length granted per heartbeat (default: 3x interval)
	Timeout  time.Duration // per-heartbeat deadline (default: 10s)
}

// LoadConfigFromEnv loads heartbeat configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Interval: config.GetDurationEnv("HEARTBEAT_INTERVAL", 10*time.Second),
		Window:   config.GetDurationEnv("HEARTBEAT_WINDOW", 0),
		Timeout:  config.GetDurationEnv("HEARTBEAT_TIMEOUT", 10*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.Window <= 0 {
		c.Window = 3 * c.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}
