// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	UpstreamBaseURL string
	FrontendURL     string
	DBPath          string
	Timeout         TimeoutConfig
	Monitor         MonitorConfig
}

// TimeoutConfig groups the per-concern network timeouts.
type TimeoutConfig struct {
	Proxy        time.Duration // default upstream forwarding timeout
	Image        time.Duration // image generation is slow, gets its own budget
	SessionCheck time.Duration // lightweight session-validity probe
	HealthCheck  time.Duration
}

// MonitorConfig controls the session monitor timers.
type MonitorConfig struct {
	CheckInterval     time.Duration // session-validity polling
	IdleCheckInterval time.Duration // idle-warning polling
	MaxIdleTime       time.Duration // idle threshold before the warning raises
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "https://hac.hiroshima-aiclub.org"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/betterhac.db"),
		Timeout: TimeoutConfig{
			Proxy:        getEnvDuration("PROXY_TIMEOUT", 30*time.Second),
			Image:        getEnvDuration("IMAGE_TIMEOUT", 60*time.Second),
			SessionCheck: getEnvDuration("SESSION_CHECK_TIMEOUT", 5*time.Second),
			HealthCheck:  getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Monitor: MonitorConfig{
			CheckInterval:     getEnvDuration("SESSION_CHECK_INTERVAL", 5*time.Minute),
			IdleCheckInterval: getEnvDuration("IDLE_CHECK_INTERVAL", time.Minute),
			MaxIdleTime:       getEnvDuration("MAX_IDLE_TIME", 30*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.UpstreamBaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL cannot be empty")
	}
	if !strings.HasPrefix(c.UpstreamBaseURL, "http://") && !strings.HasPrefix(c.UpstreamBaseURL, "https://") {
		return fmt.Errorf("UPSTREAM_BASE_URL must be an http(s) URL")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Timeout.Proxy <= 0 || c.Timeout.Image <= 0 || c.Timeout.SessionCheck <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.Monitor.CheckInterval <= 0 || c.Monitor.IdleCheckInterval <= 0 || c.Monitor.MaxIdleTime <= 0 {
		return fmt.Errorf("monitor intervals must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	// Bare numbers are treated as seconds.
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
