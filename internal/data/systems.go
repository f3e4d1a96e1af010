package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/system"
)

// SystemEntry is one system registration as written in systems.yaml.
type SystemEntry struct {
	Name    string   `yaml:"name"`
	Phase   string   `yaml:"phase"` // "update" (default) or "draw"
	After   []string `yaml:"after"`
	Before  []string `yaml:"before"`
	Replace string   `yaml:"replace"`
	Flags   []uint   `yaml:"flags"` // bit positions, ORed into Mask
	Mask    uint64   `yaml:"mask"`
}

// SystemFlags combines Mask with the listed bit positions.
func (s *SystemEntry) SystemFlags() (ecs.SystemFlags, error) {
	flags := ecs.SystemFlags(s.Mask)
	for _, bit := range s.Flags {
		if bit >= 64 {
			return 0, fmt.Errorf("system %s: flag bit %d out of range", s.Name, bit)
		}
		flags |= 1 << bit
	}
	return flags, nil
}

// SystemTable holds the system registrations in file order.
type SystemTable struct {
	entries []SystemEntry
}

type systemFile struct {
	Systems []SystemEntry `yaml:"systems"`
}

// LoadSystemTable loads systems.yaml.
func LoadSystemTable(path string) (*SystemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("systems: read %s: %w", path, err)
	}
	t, err := ParseSystemTable(raw)
	if err != nil {
		return nil, fmt.Errorf("systems: parse %s: %w", path, err)
	}
	return t, nil
}

func ParseSystemTable(raw []byte) (*SystemTable, error) {
	var f systemFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &SystemTable{entries: f.Systems}, nil
}

// Count returns the number of registrations loaded.
func (t *SystemTable) Count() int {
	return len(t.entries)
}

func (t *SystemTable) Entries() []SystemEntry {
	return t.entries
}

// Registrations converts the table into ecs registrations, binding each
// entry to the factory of the same name. Entries without a factory keep a
// nil Factory; ordering still works, but NewWorld will reject them.
func (t *SystemTable) Registrations(factories map[string]ecs.Factory) ([]ecs.Registration, error) {
	regs := make([]ecs.Registration, 0, len(t.entries))
	for i := range t.entries {
		e := &t.entries[i]
		phase, err := system.ParsePhase(e.Phase)
		if err != nil {
			return nil, fmt.Errorf("system %s: %w", e.Name, err)
		}
		flags, err := e.SystemFlags()
		if err != nil {
			return nil, err
		}
		regs = append(regs, ecs.Registration{
			Name:    e.Name,
			After:   e.After,
			Before:  e.Before,
			Replace: e.Replace,
			Flags:   flags,
			Phase:   phase,
			Factory: factories[e.Name],
		})
	}
	return regs, nil
}
