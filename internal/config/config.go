// Package config loads the server's YAML configuration. A missing file is
// not an error; every field has a usable default so the server runs with no
// config at all.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stardrift/server/internal/game"
	"stardrift/server/logging"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// StorePath is the sqlite database file.
	StorePath string `yaml:"store_path"`

	// TickInterval is how often a realtime game advances one tick.
	TickInterval time.Duration `yaml:"tick_interval"`
	// SchedulerPoll bounds how long the scheduler sleeps between passes.
	SchedulerPoll time.Duration `yaml:"scheduler_poll"`

	// CleanupInterval is how often finished games are swept.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// CleanupRetention keeps finished games visible for this long.
	CleanupRetention time.Duration `yaml:"cleanup_retention"`

	// OfficialInterval is how often the open official-game count is topped
	// up, and OfficialGamesOpen is the count to maintain.
	OfficialInterval  time.Duration `yaml:"official_interval"`
	OfficialGamesOpen int           `yaml:"official_games_open"`

	// JournalCapacity bounds the per-game event journal.
	JournalCapacity int `yaml:"journal_capacity"`

	Logging  logging.Config `yaml:"logging"`
	Official game.Settings  `yaml:"official_settings"`
}

// Default returns the configuration the server runs with when no file is
// supplied.
func Default() Config {
	return Config{
		Addr:              ":8080",
		StorePath:         "stardrift.db",
		TickInterval:      30 * time.Second,
		SchedulerPoll:     time.Second,
		CleanupInterval:   time.Hour,
		CleanupRetention:  7 * 24 * time.Hour,
		OfficialInterval:  5 * time.Minute,
		OfficialGamesOpen: 3,
		JournalCapacity:   256,
		Logging:           logging.DefaultConfig(),
		Official:          game.DefaultSettings(),
	}
}

// Load overlays the YAML file at path onto the defaults. An empty path or a
// missing file yields the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// normalized clamps nonsensical values back to their defaults.
func (c Config) normalized() Config {
	defaults := Default()
	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	if c.StorePath == "" {
		c.StorePath = defaults.StorePath
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.SchedulerPoll <= 0 {
		c.SchedulerPoll = defaults.SchedulerPoll
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	if c.CleanupRetention <= 0 {
		c.CleanupRetention = defaults.CleanupRetention
	}
	if c.OfficialInterval <= 0 {
		c.OfficialInterval = defaults.OfficialInterval
	}
	if c.OfficialGamesOpen < 0 {
		c.OfficialGamesOpen = defaults.OfficialGamesOpen
	}
	if c.JournalCapacity <= 0 {
		c.JournalCapacity = defaults.JournalCapacity
	}
	return c
}
