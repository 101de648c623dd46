package config

import (
	"testing"
	"time"
)

// TestLoad_Defaults verifies the defaults used when no environment
// overrides are present.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Port != 8081 {
		t.Errorf("expected default port 8081, got %d", cfg.Port)
	}
	if cfg.DBPath != "mapveto.db" {
		t.Errorf("expected default db path mapveto.db, got %s", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.HeartbeatThreshold != 15*time.Second {
		t.Errorf("expected 15s heartbeat threshold, got %s", cfg.HeartbeatThreshold)
	}
	if cfg.GracePeriod != 5*time.Minute {
		t.Errorf("expected 5m grace period, got %s", cfg.GracePeriod)
	}
	if cfg.SessionTTL != 168*time.Hour {
		t.Errorf("expected 168h session TTL, got %s", cfg.SessionTTL)
	}
}

// TestLoad_EnvironmentOverrides verifies environment variables win over
// defaults.
func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MAPVETO_PORT", "9090")
	t.Setenv("MAPVETO_DB", "/tmp/veto-test.db")
	t.Setenv("MAPVETO_ADMIN_PW", "hunter2")
	t.Setenv("MAPVETO_HEARTBEAT_THRESHOLD", "30s")
	t.Setenv("MAPVETO_SESSION_TTL", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.DBPath != "/tmp/veto-test.db" {
		t.Errorf("expected overridden db path, got %s", cfg.DBPath)
	}
	if cfg.AdminPassword != "hunter2" {
		t.Errorf("expected overridden admin password, got %s", cfg.AdminPassword)
	}
	if cfg.HeartbeatThreshold != 30*time.Second {
		t.Errorf("expected 30s heartbeat threshold, got %s", cfg.HeartbeatThreshold)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("expected 24h session TTL, got %s", cfg.SessionTTL)
	}
}

// TestLoad_InvalidDuration verifies a malformed duration fails loudly.
func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("MAPVETO_GRACE_PERIOD", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid duration, got nil")
	}
}
