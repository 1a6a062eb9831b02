package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Expected default port 3000, got %s", cfg.Port)
	}
	if cfg.UpstreamBaseURL != "https://hac.hiroshima-aiclub.org" {
		t.Errorf("Unexpected default upstream URL: %s", cfg.UpstreamBaseURL)
	}
	if cfg.DBPath != "./data/betterhac.db" {
		t.Errorf("Unexpected default DB path: %s", cfg.DBPath)
	}
	if cfg.Timeout.Proxy != 30*time.Second {
		t.Errorf("Unexpected default proxy timeout: %s", cfg.Timeout.Proxy)
	}
	if cfg.Timeout.Image != 60*time.Second {
		t.Errorf("Unexpected default image timeout: %s", cfg.Timeout.Image)
	}
	if cfg.Monitor.CheckInterval != 5*time.Minute {
		t.Errorf("Unexpected default check interval: %s", cfg.Monitor.CheckInterval)
	}
	if cfg.Monitor.MaxIdleTime != 30*time.Minute {
		t.Errorf("Unexpected default max idle time: %s", cfg.Monitor.MaxIdleTime)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("UPSTREAM_BASE_URL", "http://localhost:9000")
	t.Setenv("IMAGE_TIMEOUT", "90s")
	t.Setenv("MAX_IDLE_TIME", "10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.UpstreamBaseURL != "http://localhost:9000" {
		t.Errorf("Unexpected upstream URL: %s", cfg.UpstreamBaseURL)
	}
	if cfg.Timeout.Image != 90*time.Second {
		t.Errorf("Expected 90s image timeout, got %s", cfg.Timeout.Image)
	}
	if cfg.Monitor.MaxIdleTime != 10*time.Minute {
		t.Errorf("Expected 10m max idle, got %s", cfg.Monitor.MaxIdleTime)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	if d := getEnvDuration("TEST_DURATION", time.Second); d != 45*time.Second {
		t.Errorf("Expected 45s, got %s", d)
	}

	// Bare numbers are seconds.
	t.Setenv("TEST_DURATION", "30")
	if d := getEnvDuration("TEST_DURATION", time.Second); d != 30*time.Second {
		t.Errorf("Expected 30s from bare number, got %s", d)
	}

	t.Setenv("TEST_DURATION", "garbage")
	if d := getEnvDuration("TEST_DURATION", 7*time.Second); d != 7*time.Second {
		t.Errorf("Expected fallback for garbage input, got %s", d)
	}

	t.Setenv("TEST_DURATION", "-5s")
	if d := getEnvDuration("TEST_DURATION", 7*time.Second); d != 7*time.Second {
		t.Errorf("Expected fallback for negative input, got %s", d)
	}

	if d := getEnvDuration("TEST_DURATION_UNSET", 3*time.Second); d != 3*time.Second {
		t.Errorf("Expected fallback for unset key, got %s", d)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:            "3000",
			UpstreamBaseURL: "https://example.com",
			DBPath:          "./data/test.db",
			Timeout: TimeoutConfig{
				Proxy:        time.Second,
				Image:        time.Second,
				SessionCheck: time.Second,
				HealthCheck:  time.Second,
			},
			Monitor: MonitorConfig{
				CheckInterval:     time.Minute,
				IdleCheckInterval: time.Minute,
				MaxIdleTime:       time.Minute,
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg := valid()
	cfg.Port = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty port")
	}

	cfg = valid()
	cfg.UpstreamBaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for non-http upstream URL")
	}

	cfg = valid()
	cfg.Timeout.Image = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero timeout")
	}

	cfg = valid()
	cfg.Monitor.MaxIdleTime = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for negative idle threshold")
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{FrontendURL: ""}
	if !cfg.IsDevelopment() {
		t.Error("Expected development mode with no frontend URL")
	}

	cfg.FrontendURL = "http://localhost:5173"
	if !cfg.IsDevelopment() {
		t.Error("Expected development mode for localhost frontend")
	}

	cfg.FrontendURL = "https://hac.example.org"
	if cfg.IsDevelopment() {
		t.Error("Expected production mode for public frontend URL")
	}
}
