package data

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/system"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const systemsYAML = `
systems:
  - name: physics
    after: [input]
    flags: [0, 2]
  - name: input
  - name: render
    phase: draw
    mask: 0x10
  - name: physics2
    replace: physics
`

func TestSystemTableRegistrations(t *testing.T) {
	table, err := LoadSystemTable(writeFile(t, "systems.yaml", systemsYAML))
	if err != nil {
		t.Fatal(err)
	}
	if table.Count() != 4 {
		t.Fatalf("count = %d", table.Count())
	}
	regs, err := table.Registrations(nil)
	if err != nil {
		t.Fatal(err)
	}
	if regs[0].Flags != 0b101 || !slices.Equal(regs[0].After, []string{"input"}) {
		t.Fatalf("physics = %+v", regs[0])
	}
	if regs[2].Phase != system.PhaseDraw || regs[2].Flags != 0x10 {
		t.Fatalf("render = %+v", regs[2])
	}

	update, draw, err := ecs.OrderRegistrations(regs, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range update {
		names = append(names, r.Name)
	}
	if !slices.Equal(names, []string{"input", "physics2"}) || len(draw) != 1 {
		t.Fatalf("update = %v, draw = %d", names, len(draw))
	}
}

func TestSystemTableBadEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"phase", "systems:\n  - name: a\n    phase: later\n", system.ErrInvalidPhase},
		{"flag bit", "systems:\n  - name: a\n    flags: [64]\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseSystemTable([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			_, err = table.Registrations(nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := ParseSystemTable([]byte("systems: [")); err == nil {
		t.Fatal("malformed yaml parsed")
	}
}

func TestRegistrationsBindFactories(t *testing.T) {
	table, err := ParseSystemTable([]byte("systems:\n  - name: a\n  - name: b\n"))
	if err != nil {
		t.Fatal(err)
	}
	f := func(*ecs.World) (ecs.System, error) { return nil, nil }
	regs, err := table.Registrations(map[string]ecs.Factory{"a": f})
	if err != nil {
		t.Fatal(err)
	}
	if regs[0].Factory == nil || regs[1].Factory != nil {
		t.Fatal("factories bound to the wrong entries")
	}
}

func TestComponentTableApply(t *testing.T) {
	path := writeFile(t, "components.yaml", `
components:
  - name: position
    pool_size: 256
  - name: lifetime
    use_pooling: false
`)
	table, err := LoadComponentTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if table.Count() != 2 || table.Get("position") == nil || table.Get("velocity") != nil {
		t.Fatal("lookup mismatch")
	}

	cfg := config.Defaults().World
	table.Apply(&cfg)
	if p := cfg.PoolFor("position"); !p.UsePooling || p.PoolSize != 256 {
		t.Fatalf("position = %+v", p)
	}
	if p := cfg.PoolFor("lifetime"); p.UsePooling {
		t.Fatalf("lifetime = %+v", p)
	}
	if p := cfg.PoolFor("velocity"); p != cfg.Pooling {
		t.Fatalf("velocity = %+v, want defaults", p)
	}
}

func TestComponentTableRejectsBadEntries(t *testing.T) {
	for _, body := range []string{
		"components:\n  - pool_size: 3\n",
		"components:\n  - name: a\n  - name: a\n",
	} {
		if _, err := LoadComponentTable(writeFile(t, "c.yaml", body)); err == nil {
			t.Fatalf("accepted %q", body)
		}
	}
	if _, err := LoadComponentTable(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("missing file loaded")
	}
}
