package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/ecscore/internal/config"
)

// ComponentEntry is the pool metadata for one component kind. Omitted
// fields fall back to the [world.pooling] defaults.
type ComponentEntry struct {
	Name       string `yaml:"name"`
	UsePooling *bool  `yaml:"use_pooling"`
	PoolSize   int    `yaml:"pool_size"`
}

type componentFile struct {
	Components []ComponentEntry `yaml:"components"`
}

// ComponentTable indexes component metadata by kind name.
type ComponentTable struct {
	byName map[string]*ComponentEntry
}

// LoadComponentTable loads components.yaml.
func LoadComponentTable(path string) (*ComponentTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("components: read %s: %w", path, err)
	}
	var f componentFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("components: parse %s: %w", path, err)
	}
	t := &ComponentTable{
		byName: make(map[string]*ComponentEntry, len(f.Components)),
	}
	for i := range f.Components {
		c := &f.Components[i]
		if c.Name == "" {
			return nil, fmt.Errorf("components: entry %d has no name", i)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("components: duplicate entry %q", c.Name)
		}
		t.byName[c.Name] = c
	}
	return t, nil
}

// Get returns the entry for a kind, or nil if none.
func (t *ComponentTable) Get(name string) *ComponentEntry {
	return t.byName[name]
}

func (t *ComponentTable) Count() int {
	return len(t.byName)
}

// Apply writes every entry into cfg.Components as a per-kind override.
func (t *ComponentTable) Apply(cfg *config.WorldConfig) {
	if cfg.Components == nil {
		cfg.Components = make(map[string]config.PoolConfig, len(t.byName))
	}
	for name, c := range t.byName {
		p := cfg.Pooling
		if c.UsePooling != nil {
			p.UsePooling = *c.UsePooling
		}
		if c.PoolSize > 0 {
			p.PoolSize = c.PoolSize
		}
		cfg.Components[name] = p
	}
}
