package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	World    WorldConfig    `toml:"world"`
	Manifest ManifestConfig `toml:"manifest"`
	Host     HostConfig     `toml:"host"`
	Logging  LoggingConfig  `toml:"logging"`
}

// WorldConfig sizes the entity registry and its pools.
type WorldConfig struct {
	InitialCapacity int  `toml:"initial_capacity"` // dense entity array, doubled when full
	DrainBuffer     int  `toml:"drain_buffer"`     // per-frame snapshot buffer capacity
	Debug           bool `toml:"debug"`            // enables fail-fast usage checks
	Workers         int  `toml:"workers"`          // >1 drains systems in parallel

	Pooling    PoolConfig            `toml:"pooling"`    // defaults for every component kind
	Components map[string]PoolConfig `toml:"components"` // per-kind overrides, keyed by kind name
}

type PoolConfig struct {
	UsePooling bool `toml:"use_pooling" yaml:"use_pooling"`
	PoolSize   int  `toml:"pool_size" yaml:"pool_size"` // 0 = InitialCapacity
}

type ManifestConfig struct {
	Systems        string `toml:"systems"`
	Components     string `toml:"components"`
	Templates      string `toml:"templates"`
	WatchTemplates bool   `toml:"watch_templates"`
}

type HostConfig struct {
	FrameRate  time.Duration `toml:"frame_rate"`
	StatsEvery int           `toml:"stats_every"` // frames between stats lines
	SpawnRate  int           `toml:"spawn_rate"`  // entities spawned per frame
	MaxFrames  int           `toml:"max_frames"`  // 0 = run until signalled
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse overlays raw TOML onto the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.World.normalize()
	return cfg, nil
}

// PoolFor resolves the pool settings for a component kind.
func (c WorldConfig) PoolFor(kind string) PoolConfig {
	p, ok := c.Components[kind]
	if !ok {
		p = c.Pooling
	}
	if p.PoolSize <= 0 {
		p.PoolSize = c.InitialCapacity
	}
	return p
}

func (c *WorldConfig) normalize() {
	if c.InitialCapacity <= 0 {
		c.InitialCapacity = 64
	}
	if c.DrainBuffer <= 0 {
		c.DrainBuffer = c.InitialCapacity
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Pooling.PoolSize <= 0 {
		c.Pooling.PoolSize = c.InitialCapacity
	}
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() *Config {
	cfg := defaults()
	cfg.World.normalize()
	return cfg
}

func defaults() *Config {
	return &Config{
		World: WorldConfig{
			InitialCapacity: 64,
			Workers:         1,
			Pooling: PoolConfig{
				UsePooling: true,
			},
		},
		Manifest: ManifestConfig{
			Systems:    "config/systems.yaml",
			Components: "config/components.yaml",
			Templates:  "scripts/templates",
		},
		Host: HostConfig{
			FrameRate:  16 * time.Millisecond,
			StatsEvery: 120,
			SpawnRate:  4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
