// Package config loads client configuration: embedded defaults overlaid with
// an optional user YAML file, with derived values computed after load.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable of the client.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sync      SyncConfig      `yaml:"sync"`
	Starfield StarfieldConfig `yaml:"starfield"`
	Spatial   SpatialConfig   `yaml:"spatial"`
	Render    RenderConfig    `yaml:"render"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ServerConfig holds connection endpoint settings.
type ServerConfig struct {
	URL      string `yaml:"url"`
	Identity string `yaml:"identity"`
	Region   string `yaml:"region"`
}

// SyncConfig holds heartbeat, reconnect, and reconciliation settings.
type SyncConfig struct {
	HeartbeatIntervalMs int     `yaml:"heartbeat_interval_ms"`
	MissedPongLimit     int     `yaml:"missed_pong_limit"`
	BackoffBaseMs       int     `yaml:"backoff_base_ms"`
	MaxAttempts         int     `yaml:"max_attempts"`
	QueueCap            int     `yaml:"queue_cap"`
	Smoothing           float64 `yaml:"smoothing"`
	TickRate            int     `yaml:"tick_rate"` // world ticks per second
}

// StarfieldConfig holds procedural generation settings.
type StarfieldConfig struct {
	Seed             int64              `yaml:"seed"`
	CellSize         float64            `yaml:"cell_size"`
	BaseStarsPerCell int                `yaml:"base_stars_per_cell"`
	HubRadius        float64            `yaml:"hub_radius"`
	FalloffScale     float64            `yaml:"falloff_scale"`
	DensityFloor     float64            `yaml:"density_floor"`
	NebulaScale      float64            `yaml:"nebula_scale"`
	NebulaInfluence  float64            `yaml:"nebula_influence"`
	GenerationRadius int                `yaml:"generation_radius_cells"`
	RetentionRadius  int                `yaml:"retention_radius_cells"`
	RegionDensity    map[string]float64 `yaml:"region_density"`
}

// SpatialConfig holds quadtree settings.
type SpatialConfig struct {
	Extent    float64 `yaml:"extent"` // half-size of the indexed square
	Threshold int     `yaml:"threshold"`
	MaxDepth  int     `yaml:"max_depth"`
}

// RenderConfig holds render-support settings.
type RenderConfig struct {
	PoolSize         int `yaml:"pool_size"`
	GradientCacheCap int `yaml:"gradient_cache_cap"`
}

// LoggingConfig holds router and sink settings.
type LoggingConfig struct {
	Sinks           []string `yaml:"sinks"`
	BufferSize      int      `yaml:"buffer_size"`
	MinimumSeverity string   `yaml:"minimum_severity"`
	JSONPath        string   `yaml:"json_path"`
}

// TelemetryConfig holds session export settings.
type TelemetryConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	HeartbeatInterval time.Duration
	BackoffBase       time.Duration
	TickInterval      time.Duration
}

// Load merges the embedded defaults with an optional user file. An empty path
// loads defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct: only fields present in the
		// file overwrite defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) computeDerived() {
	if c.Sync.TickRate <= 0 {
		c.Sync.TickRate = 30
	}
	c.Derived.HeartbeatInterval = time.Duration(c.Sync.HeartbeatIntervalMs) * time.Millisecond
	c.Derived.BackoffBase = time.Duration(c.Sync.BackoffBaseMs) * time.Millisecond
	c.Derived.TickInterval = time.Second / time.Duration(c.Sync.TickRate)

	if c.Starfield.RetentionRadius < c.Starfield.GenerationRadius {
		// Retaining less than we generate would evict and regenerate the
		// same rim every tick.
		c.Starfield.RetentionRadius = c.Starfield.GenerationRadius * 2
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
