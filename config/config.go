package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every knob the engine reads from the environment.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`

	// HTTP
	HTTPAddr         string `env:"HTTP_ADDR" envDefault:":5200"`
	GameServiceToken string `env:"GAME_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins   string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// Logging
	LogMode string `env:"LOG_MODE" envDefault:"development"`

	// Progression rules
	DayBoundaryOffset time.Duration `env:"DAY_BOUNDARY_OFFSET" envDefault:"3h"`
	RaidTimeBudget    time.Duration `env:"RAID_TIME_BUDGET" envDefault:"168h"`
	RaidFailHPPenalty int           `env:"RAID_FAIL_HP_PENALTY" envDefault:"25"`

	// Sweeper
	SweepEnabled  bool          `env:"SWEEP_ENABLED" envDefault:"true"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`

	// Profile sync (optional)
	SyncServiceURL string        `env:"SYNC_SERVICE_URL"`
	SyncInterval   time.Duration `env:"SYNC_INTERVAL" envDefault:"1m"`

	// Events (optional)
	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"progression"`
}

// Load reads a .env file when present and parses the environment into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RaidTimeBudget <= 0 {
		return fmt.Errorf("RAID_TIME_BUDGET must be positive")
	}
	if c.RaidFailHPPenalty < 0 {
		return fmt.Errorf("RAID_FAIL_HP_PENALTY must not be negative")
	}
	if c.SweepEnabled && c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive when sweeping is enabled")
	}
	if c.SyncServiceURL != "" && c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive when SYNC_SERVICE_URL is set")
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS and trims each entry.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
