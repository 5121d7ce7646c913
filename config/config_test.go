package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading embedded defaults failed: %v", err)
	}
	if cfg.Server.URL == "" || cfg.Server.Region == "" {
		t.Fatalf("server defaults missing: %+v", cfg.Server)
	}
	if cfg.Sync.Smoothing != 0.3 || cfg.Sync.MissedPongLimit != 3 {
		t.Fatalf("sync defaults missing: %+v", cfg.Sync)
	}
	if cfg.Starfield.CellSize != 256 || cfg.Starfield.BaseStarsPerCell != 12 {
		t.Fatalf("starfield defaults missing: %+v", cfg.Starfield)
	}
	if cfg.Spatial.Threshold != 8 || cfg.Spatial.MaxDepth != 6 {
		t.Fatalf("spatial defaults missing: %+v", cfg.Spatial)
	}
	if len(cfg.Logging.Sinks) == 0 {
		t.Fatalf("logging defaults missing: %+v", cfg.Logging)
	}
}

func TestLoadOverlayKeepsUnspecifiedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	overlay := []byte("server:\n  url: \"ws://game.test/ws\"\nsync:\n  smoothing: 0.5\n")
	if err := os.WriteFile(path, overlay, 0o644); err != nil {
		t.Fatalf("writing overlay: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading overlay failed: %v", err)
	}
	if cfg.Server.URL != "ws://game.test/ws" {
		t.Fatalf("overlay value not applied: %s", cfg.Server.URL)
	}
	if cfg.Sync.Smoothing != 0.5 {
		t.Fatalf("overlay value not applied: %f", cfg.Sync.Smoothing)
	}
	if cfg.Server.Region != "genesis" || cfg.Sync.MissedPongLimit != 3 {
		t.Fatalf("defaults lost under overlay: %+v", cfg)
	}
}

func TestDerivedValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Derived.HeartbeatInterval != 5*time.Second {
		t.Fatalf("heartbeat interval: %v", cfg.Derived.HeartbeatInterval)
	}
	if cfg.Derived.BackoffBase != time.Second {
		t.Fatalf("backoff base: %v", cfg.Derived.BackoffBase)
	}
	if cfg.Derived.TickInterval != time.Second/30 {
		t.Fatalf("tick interval: %v", cfg.Derived.TickInterval)
	}
}

func TestRetentionNeverBelowGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tight.yaml")
	overlay := []byte("starfield:\n  generation_radius_cells: 6\n  retention_radius_cells: 2\n")
	if err := os.WriteFile(path, overlay, 0o644); err != nil {
		t.Fatalf("writing overlay: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Starfield.RetentionRadius < cfg.Starfield.GenerationRadius {
		t.Fatalf("retention %d must cover generation %d",
			cfg.Starfield.RetentionRadius, cfg.Starfield.GenerationRadius)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}
