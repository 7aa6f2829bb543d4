// Package config provides configuration management for the favmirror TUI.
package config

import (
	"os"
	"strings"
	"time"
)

// Config holds the TUI configuration.
type Config struct {
	// ServerURL is the base URL of a running favmirror server.
	ServerURL string

	// Refresh intervals
	StatusRefresh  time.Duration
	RequestTimeout time.Duration
}

// Load returns configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ServerURL:      strings.TrimRight(getEnv("FAVMIRROR_URL", "http://localhost:34343"), "/"),
		StatusRefresh:  getDuration("FAVMIRROR_STATUS_REFRESH", 5*time.Second),
		RequestTimeout: getDuration("FAVMIRROR_REQUEST_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
