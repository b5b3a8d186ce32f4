package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/progression")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %s, want postgres", cfg.DBDriver)
	}
	if cfg.DayBoundaryOffset != 3*time.Hour {
		t.Errorf("DayBoundaryOffset = %s, want 3h", cfg.DayBoundaryOffset)
	}
	if cfg.RaidTimeBudget != 168*time.Hour || cfg.RaidFailHPPenalty != 25 {
		t.Errorf("raid budget/penalty = %s/%d, want 168h/25", cfg.RaidTimeBudget, cfg.RaidFailHPPenalty)
	}
	if !cfg.SweepEnabled || cfg.SweepInterval != 10*time.Minute {
		t.Errorf("sweep = %v/%s, want true/10m", cfg.SweepEnabled, cfg.SweepInterval)
	}
	if cfg.HTTPAddr != ":5200" {
		t.Errorf("HTTPAddr = %s, want :5200", cfg.HTTPAddr)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("GAME_SERVICE_TOKEN", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/progression")
	if _, err := Load(); err == nil {
		t.Fatal("Load without GAME_SERVICE_TOKEN succeeded")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:progression.db")
	t.Setenv("RAID_TIME_BUDGET", "48h")
	t.Setenv("DAY_BOUNDARY_OFFSET", "-5h")
	t.Setenv("SWEEP_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.RaidTimeBudget != 48*time.Hour || cfg.DayBoundaryOffset != -5*time.Hour || cfg.SweepEnabled {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:       "postgres://x",
			DBDriver:          "postgres",
			RaidTimeBudget:    time.Hour,
			RaidFailHPPenalty: 25,
			SweepEnabled:      true,
			SweepInterval:     time.Minute,
		}
	}

	cases := map[string]func(*Config){
		"driver":         func(c *Config) { c.DBDriver = "mysql" },
		"database url":   func(c *Config) { c.DatabaseURL = "" },
		"raid budget":    func(c *Config) { c.RaidTimeBudget = 0 },
		"penalty":        func(c *Config) { c.RaidFailHPPenalty = -1 },
		"sweep interval": func(c *Config) { c.SweepInterval = 0 },
		"sync interval": func(c *Config) {
			c.SyncServiceURL = "http://profiles"
			c.SyncInterval = 0
		},
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid config", name)
		}
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestOrigins(t *testing.T) {
	cfg := Config{AllowedOrigins: " http://a.test , ,http://b.test "}
	if got := cfg.Origins(); got != "http://a.test,http://b.test" {
		t.Errorf("Origins() = %q", got)
	}
}
