package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.World.InitialCapacity != 64 || cfg.World.DrainBuffer != 64 || cfg.World.Workers != 1 {
		t.Fatalf("world = %+v", cfg.World)
	}
	if !cfg.World.Pooling.UsePooling || cfg.World.Pooling.PoolSize != 64 {
		t.Fatalf("pooling = %+v", cfg.World.Pooling)
	}
	if cfg.Host.FrameRate != 16*time.Millisecond || cfg.Logging.Level != "info" {
		t.Fatalf("host = %+v logging = %+v", cfg.Host, cfg.Logging)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[world]
initial_capacity = 128
workers = 4

[world.pooling]
use_pooling = false

[world.components.velocity]
use_pooling = true
pool_size = 512

[host]
frame_rate = "20ms"
`))
	if err != nil {
		t.Fatal(err)
	}
	w := cfg.World
	if w.InitialCapacity != 128 || w.DrainBuffer != 128 || w.Workers != 4 {
		t.Fatalf("world = %+v", w)
	}
	if w.Pooling.UsePooling || w.Pooling.PoolSize != 128 {
		t.Fatalf("pool size should follow the overlaid capacity: %+v", w.Pooling)
	}
	if cfg.Host.FrameRate != 20*time.Millisecond || cfg.Host.StatsEvery != 120 {
		t.Fatalf("host = %+v", cfg.Host)
	}
	if cfg.Manifest.Systems != "config/systems.yaml" {
		t.Fatalf("manifest default lost: %+v", cfg.Manifest)
	}

	if p := w.PoolFor("velocity"); !p.UsePooling || p.PoolSize != 512 {
		t.Fatalf("velocity = %+v", p)
	}
	if p := w.PoolFor("position"); p.UsePooling || p.PoolSize != 128 {
		t.Fatalf("position = %+v", p)
	}
}

func TestPoolForFillsSize(t *testing.T) {
	w := WorldConfig{
		InitialCapacity: 32,
		Components:      map[string]PoolConfig{"a": {UsePooling: true}},
	}
	if p := w.PoolFor("a"); p.PoolSize != 32 {
		t.Fatalf("size = %d, want 32", p.PoolSize)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	if err := os.WriteFile(path, []byte("[logging]\nformat = \"json\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing file loaded")
	}
	if _, err := Parse([]byte("[world\n")); err == nil {
		t.Fatal("malformed toml parsed")
	}
}
