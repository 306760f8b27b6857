package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.TickInterval != 30*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Official.Name != "official" {
		t.Fatalf("official settings = %+v", cfg.Official)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorePath != "stardrift.db" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
addr: ":9090"
tick_interval: 10s
official_settings:
  game_speed: 10
logging:
  enabled_sinks: [console, json]
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.TickInterval != 10*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Official.GameSpeed != 10 {
		t.Fatalf("nested override lost: %+v", cfg.Official)
	}
	if !cfg.Logging.HasSink("json") {
		t.Fatalf("logging sinks = %v", cfg.Logging.EnabledSinks)
	}
	// Untouched fields keep their defaults.
	if cfg.SchedulerPoll != time.Second || cfg.JournalCapacity != 256 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadClampsNonsense(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
tick_interval: -5s
journal_capacity: 0
official_games_open: -1
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickInterval != 30*time.Second || cfg.JournalCapacity != 256 || cfg.OfficialGamesOpen != 3 {
		t.Fatalf("clamps not applied: %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
