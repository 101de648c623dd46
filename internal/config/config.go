package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Every value can be supplied via
// environment variables; cmd/mapveto exposes flag overrides for the
// common ones.
type Config struct {
	Port          int    `env:"MAPVETO_PORT" envDefault:"8081"`
	DBPath        string `env:"MAPVETO_DB" envDefault:"mapveto.db"`
	AdminPassword string `env:"MAPVETO_ADMIN_PW"`
	LogLevel      string `env:"MAPVETO_LOG_LEVEL" envDefault:"info"`

	// Supervisor windows. The heartbeat threshold marks a player
	// disconnected; the grace period is tracked for operators but never
	// auto-resumes a session.
	HeartbeatThreshold time.Duration `env:"MAPVETO_HEARTBEAT_THRESHOLD" envDefault:"15s"`
	GracePeriod        time.Duration `env:"MAPVETO_GRACE_PERIOD" envDefault:"5m"`

	// Sweep intervals for the background jobs.
	TimeoutSweepInterval   time.Duration `env:"MAPVETO_TIMEOUT_SWEEP" envDefault:"1m"`
	HeartbeatSweepInterval time.Duration `env:"MAPVETO_HEARTBEAT_SWEEP" envDefault:"5s"`
	ExpirySweepInterval    time.Duration `env:"MAPVETO_EXPIRY_SWEEP" envDefault:"1h"`

	// Idle DRAFT/WAITING sessions past this horizon are expired; player
	// tokens share the same lifetime.
	SessionTTL time.Duration `env:"MAPVETO_SESSION_TTL" envDefault:"168h"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
