package ecs

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/l1jgo/ecscore/internal/core/event"
	"github.com/l1jgo/ecscore/internal/core/system"
)

// trace is a shared, goroutine-safe event log.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(format string, args ...any) {
	tr.mu.Lock()
	tr.events = append(tr.events, fmt.Sprintf(format, args...))
	tr.mu.Unlock()
}

func (tr *trace) take() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := tr.events
	tr.events = nil
	return out
}

// recorder logs every call it receives.
type recorder struct {
	Base
	name     string
	tr       *trace
	skip     bool // Begin returns false
	changed  []*Entity
	removed  []*Entity
	disposed bool
	services Services
	initErr  error
}

func (r *recorder) EntityChanged(e *Entity) {
	r.changed = append(r.changed, e)
	r.tr.add("%s changed %s", r.name, e.Name())
}

func (r *recorder) EntityRemoved(e *Entity) {
	r.removed = append(r.removed, e)
	r.tr.add("%s removed", r.name)
}

func (r *recorder) Begin(FrameTime) bool {
	r.tr.add("%s begin", r.name)
	return !r.skip
}

func (r *recorder) Run(FrameTime) { r.tr.add("%s run", r.name) }
func (r *recorder) End(FrameTime) { r.tr.add("%s end", r.name) }

func (r *recorder) Initialize(s Services) error {
	r.services = s
	r.tr.add("%s init", r.name)
	return r.initErr
}

func (r *recorder) Dispose() {
	r.disposed = true
	r.tr.add("%s dispose", r.name)
}

func (r *recorder) reset() { r.changed, r.removed = nil, nil }

// healthSystem claims entities carrying health.
type healthSystem struct {
	Base
	claims *Claims1[health]
}

func (s *healthSystem) EntityChanged(e *Entity) { s.claims.Claim(e) }
func (s *healthSystem) EntityRemoved(e *Entity) { s.claims.Drop(e) }
func (s *healthSystem) Run(FrameTime)           {}

func newHealthSystem(w *World) (System, error) {
	k, err := RegisterComponent[health](w, "health")
	if err != nil {
		return nil, err
	}
	return &healthSystem{claims: NewClaims1(k)}, nil
}

func provide(s System) Factory {
	return func(*World) (System, error) { return s, nil }
}

func TestNewCreatedEntityDrainsOnce(t *testing.T) {
	tr := &trace{}
	rec := &recorder{name: "rec", tr: tr}
	w := newTestWorld(t,
		Registration{Name: "rec", Factory: provide(rec)},
		Registration{Name: "health", Factory: newHealthSystem},
	)
	hs, _ := TryGetSystemAs[*healthSystem](w, "health")

	e := mustCreate(t, w, nil)
	w.Update(FrameTime{})
	if !slices.Equal(rec.changed, []*Entity{e}) {
		t.Fatalf("changed = %v, want exactly the new entity", rec.changed)
	}
	if hs.claims.Len() != 0 {
		t.Fatal("health system claimed an entity without health")
	}

	rec.reset()
	w.Update(FrameTime{})
	if len(rec.changed) != 0 {
		t.Fatal("entity drained twice")
	}
}

func TestAddThenRemoveBeforeDrain(t *testing.T) {
	tr := &trace{}
	rec := &recorder{name: "rec", tr: tr}
	w := newTestWorld(t,
		Registration{Name: "rec", Factory: provide(rec)},
		Registration{Name: "health", Factory: newHealthSystem},
	)
	hs, _ := TryGetSystemAs[*healthSystem](w, "health")
	k := MustRegisterComponent[health](w, "health")

	e := mustCreate(t, w, nil)
	w.Update(FrameTime{})
	rec.reset()

	if err := Add(w, e, k, nil); err != nil {
		t.Fatal(err)
	}
	Remove(w, e, k, nil)
	w.Update(FrameTime{})

	if !slices.Equal(rec.changed, []*Entity{e}) {
		t.Fatalf("changed = %v, want the entity once", rec.changed)
	}
	if hs.claims.Has(e) {
		t.Fatal("claim survived the component's removal")
	}
}

func TestClaimFollowsComponents(t *testing.T) {
	w := newTestWorld(t, Registration{Name: "health", Factory: newHealthSystem})
	hs, _ := TryGetSystemAs[*healthSystem](w, "health")
	k := MustRegisterComponent[health](w, "health")

	e := mustCreate(t, w, func(w *World, e *Entity) error { return Add(w, e, k, nil) })
	w.Update(FrameTime{})
	if !hs.claims.Has(e) {
		t.Fatal("entity with health not claimed")
	}
	Remove(w, e, k, nil)
	w.Update(FrameTime{})
	if hs.claims.Has(e) {
		t.Fatal("claim kept after remove")
	}
	_ = Add(w, e, k, nil)
	w.Update(FrameTime{})
	w.Destroy(e)
	w.Update(FrameTime{})
	if hs.claims.Len() != 0 {
		t.Fatal("claim kept after destroy")
	}
}

func TestDrainOrder(t *testing.T) {
	tr := &trace{}
	a := &recorder{name: "a", tr: tr}
	b := &recorder{name: "b", tr: tr}
	d := &recorder{name: "d", tr: tr}
	w := newTestWorld(t,
		Registration{Name: "d", Phase: system.PhaseDraw, Factory: provide(d)},
		Registration{Name: "b", After: []string{"a"}, Factory: provide(b)},
		Registration{Name: "a", Factory: provide(a)},
	)
	if got := w.UpdateOrder(); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("update order = %v", got)
	}

	gone := mustCreate(t, w, nil, WithName("gone"))
	w.Update(FrameTime{})
	tr.take()

	w.Destroy(gone)
	mustCreate(t, w, nil, WithName("x"))
	mustCreate(t, w, nil, WithName("y"))
	w.Update(FrameTime{})

	want := []string{
		"b removed", "a removed", "d removed",
		"b changed x", "a changed x", "d changed x",
		"b changed y", "a changed y", "d changed y",
		"a begin", "a run", "a end",
		"b begin", "b run", "b end",
	}
	if got := tr.take(); !slices.Equal(got, want) {
		t.Fatalf("trace =\n%v\nwant\n%v", got, want)
	}

	w.Draw(FrameTime{})
	if got := tr.take(); !slices.Equal(got, []string{"d begin", "d run", "d end"}) {
		t.Fatalf("draw trace = %v", got)
	}
}

func TestMaskFiltersChanges(t *testing.T) {
	tr := &trace{}
	all := &recorder{name: "all", tr: tr}
	red := &recorder{name: "red", tr: tr}
	w := newTestWorld(t,
		Registration{Name: "all", Factory: provide(all)},
		Registration{Name: "red", Flags: 0b01, Factory: provide(red)},
	)

	plain := mustCreate(t, w, nil)
	blue := mustCreate(t, w, nil, WithFlags(0b10))
	both := mustCreate(t, w, nil, WithFlags(0b11))
	w.Update(FrameTime{})

	if !slices.Equal(all.changed, []*Entity{plain, blue, both}) {
		t.Fatal("unmasked system missed entities")
	}
	if !slices.Equal(red.changed, []*Entity{plain, both}) {
		t.Fatalf("masked system saw %d entities", len(red.changed))
	}

	// Removals reach every system.
	w.Destroy(blue)
	w.Update(FrameTime{})
	if len(red.removed) != 1 || len(all.removed) != 1 {
		t.Fatalf("removed: red %d all %d", len(red.removed), len(all.removed))
	}
}

func TestReusedEntityNotClaimedAcrossMask(t *testing.T) {
	w := newTestWorld(t, Registration{Name: "health", Flags: 0b01, Factory: newHealthSystem})
	hs, _ := TryGetSystemAs[*healthSystem](w, "health")
	k := MustRegisterComponent[health](w, "health")
	withHealth := func(w *World, e *Entity) error { return Add(w, e, k, nil) }

	e := mustCreate(t, w, withHealth, WithFlags(0b01))
	w.Update(FrameTime{})
	if !hs.claims.Has(e) {
		t.Fatal("not claimed")
	}

	// The slot is recycled within one frame under a mask the system rejects.
	w.Destroy(e)
	reused := mustCreate(t, w, withHealth, WithFlags(0b10))
	if reused != e {
		t.Skip("pool did not reuse the slot")
	}
	w.Update(FrameTime{})
	if hs.claims.Len() != 0 {
		t.Fatal("stale claim on a recycled entity")
	}
}

func TestBeginSkipsAndToggle(t *testing.T) {
	tr := &trace{}
	skipper := &recorder{name: "skip", tr: tr, skip: true}
	off := &recorder{name: "off", tr: tr}
	off.SetEnabled(false)
	w := newTestWorld(t,
		Registration{Name: "skip", Factory: provide(skipper)},
		Registration{Name: "off", After: []string{"skip"}, Factory: provide(off)},
	)
	mustCreate(t, w, nil, WithName("e"))
	w.Update(FrameTime{})

	want := []string{"off changed e", "skip changed e", "skip begin"}
	if got := tr.take(); !slices.Equal(got, want) {
		t.Fatalf("trace = %v, want %v", got, want)
	}

	off.SetEnabled(true)
	w.Update(FrameTime{})
	if got := tr.take(); !slices.Equal(got, []string{"skip begin", "off begin", "off run", "off end"}) {
		t.Fatalf("trace = %v", got)
	}
}

func TestParallelDrainMatchesSequential(t *testing.T) {
	run := func(workers int) [][]string {
		cfg := testConfig()
		cfg.Workers = workers
		tr := &trace{}
		recs := make([]*recorder, 6)
		regs := make([]Registration, len(recs))
		for i := range recs {
			recs[i] = &recorder{name: fmt.Sprintf("s%d", i), tr: tr}
			regs[i] = Registration{Name: recs[i].name, Flags: SystemFlags(i % 3), Factory: provide(recs[i])}
		}
		w := newTestWorldConfig(t, cfg, regs...)
		var ents []*Entity
		for i := 0; i < 40; i++ {
			ents = append(ents, mustCreate(t, w, nil, WithName(fmt.Sprint(i)), WithFlags(SystemFlags(i%4))))
		}
		w.Update(FrameTime{})
		for i := 0; i < 40; i += 3 {
			w.Destroy(ents[i])
		}
		w.Update(FrameTime{})

		out := make([][]string, len(recs))
		for i, r := range recs {
			for _, e := range r.changed {
				out[i] = append(out[i], "c"+e.Name())
			}
			out[i] = append(out[i], fmt.Sprintf("removed=%d", len(r.removed)))
		}
		return out
	}

	seq, par := run(1), run(4)
	for i := range seq {
		if !slices.Equal(seq[i], par[i]) {
			t.Fatalf("system %d: sequential %v, parallel %v", i, seq[i], par[i])
		}
	}
}

func TestInitializeAndDispose(t *testing.T) {
	tr := &trace{}
	u1 := &recorder{name: "u1", tr: tr}
	u2 := &recorder{name: "u2", tr: tr}
	d1 := &recorder{name: "d1", tr: tr}
	w, err := NewWorld(testConfig(), nil, []Registration{
		{Name: "u1", Factory: provide(u1)},
		{Name: "d1", Phase: system.PhaseDraw, Factory: provide(d1)},
		{Name: "u2", After: []string{"u1"}, Factory: provide(u2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	k := MustRegisterComponent[health](w, "health")
	_ = w.AddTemplate("t", func(*World, *Entity) error { return nil })

	services := ServiceMap{"answer": 42}
	if err := w.Initialize(services); err != nil {
		t.Fatal(err)
	}
	if got := tr.take(); !slices.Equal(got, []string{"u1 init", "u2 init", "d1 init"}) {
		t.Fatalf("init order = %v", got)
	}
	if v, ok := u1.services.Service("answer"); !ok || v != 42 {
		t.Fatal("services not passed through")
	}

	e := mustCreate(t, w, func(w *World, e *Entity) error { return Add(w, e, k, nil) })
	w.Dispose()

	if got := tr.take(); !slices.Equal(got, []string{"d1 dispose", "u2 dispose", "u1 dispose"}) {
		t.Fatalf("dispose order = %v", got)
	}
	if w.Count() != 0 || e.Initialized() || len(w.Templates()) != 0 {
		t.Fatal("world not cleared")
	}
	if _, ok := w.TryGetSystem("u1"); ok {
		t.Fatal("systems survive dispose")
	}
	if _, err := event.Fetch[int](w.Broadcast(), event.KeyEntityCount); !errors.Is(err, event.ErrNotFound) {
		t.Fatal("broadcast hub not cleared")
	}
	if err := w.Initialize(nil); !errors.Is(err, ErrDisposed) {
		t.Fatalf("err = %v, want ErrDisposed", err)
	}
	w.Update(FrameTime{})
	w.Dispose()
}

func TestInitializeFailure(t *testing.T) {
	boom := errors.New("no config")
	tr := &trace{}
	bad := &recorder{name: "bad", tr: tr, initErr: boom}
	later := &recorder{name: "later", tr: tr}
	w := newTestWorld(t,
		Registration{Name: "bad", Factory: provide(bad)},
		Registration{Name: "later", After: []string{"bad"}, Factory: provide(later)},
	)
	if err := w.Initialize(nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if later.services != nil {
		t.Fatal("initialization continued past the failure")
	}
}

func TestNewWorldConfigurationErrors(t *testing.T) {
	nop := provide(&recorder{tr: &trace{}})
	boom := errors.New("factory")
	tests := []struct {
		name string
		regs []Registration
		want error
	}{
		{
			name: "contradictory order",
			regs: []Registration{
				{Name: "A", After: []string{"B"}, Factory: nop},
				{Name: "B", After: []string{"A"}, Factory: nop},
			},
			want: system.ErrUnresolvableOrder,
		},
		{
			name: "phase out of range",
			regs: []Registration{{Name: "A", Phase: system.Phase(7), Factory: nop}},
			want: system.ErrInvalidPhase,
		},
		{
			name: "duplicate name",
			regs: []Registration{{Name: "A", Factory: nop}, {Name: "A", Factory: nop}},
			want: system.ErrDuplicateName,
		},
		{
			name: "missing factory",
			regs: []Registration{{Name: "A"}},
			want: ErrMissingFactory,
		},
		{
			name: "factory fails",
			regs: []Registration{{Name: "A", Factory: func(*World) (System, error) { return nil, boom }}},
			want: boom,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWorld(testConfig(), nil, tt.regs)
			if !errors.Is(err, tt.want) || w != nil {
				t.Fatalf("NewWorld = %v, %v; want %v", w, err, tt.want)
			}
		})
	}
}

func TestPhasesOrderIndependently(t *testing.T) {
	nop := func(*World) (System, error) { return &recorder{tr: &trace{}}, nil }
	w := newTestWorld(t,
		Registration{Name: "render", Phase: system.PhaseDraw, After: []string{"hud"}, Factory: nop},
		Registration{Name: "hud", Phase: system.PhaseDraw, Factory: nop},
		Registration{Name: "physics", Before: []string{"render"}, Factory: nop},
	)
	if got := w.DrawOrder(); !slices.Equal(got, []string{"hud", "render"}) {
		t.Fatalf("draw order = %v", got)
	}
	if got := w.UpdateOrder(); !slices.Equal(got, []string{"physics"}) {
		t.Fatalf("update order = %v", got)
	}
}

type counter interface{ Count() int }

type countingSystem struct {
	Base
	n int
}

func (c *countingSystem) Run(FrameTime) { c.n++ }
func (c *countingSystem) Count() int    { return c.n }

func TestSystemLookup(t *testing.T) {
	first := &countingSystem{}
	second := &countingSystem{}
	cfg := testConfig()
	cfg.Debug = true
	w := newTestWorldConfig(t, cfg,
		Registration{Name: "second", After: []string{"first"}, Factory: provide(second)},
		Registration{Name: "first", Factory: provide(first)},
		Registration{Name: "draw", Phase: system.PhaseDraw, Factory: provide(&recorder{tr: &trace{}})},
	)

	s1, ok1 := w.TryGetSystem("second")
	s2, ok2 := w.TryGetSystem("second")
	if !ok1 || !ok2 || s1 != s2 || s1 != System(second) {
		t.Fatal("TryGetSystem not idempotent")
	}
	if _, ok := w.TryGetSystem("draw"); !ok {
		t.Fatal("draw systems not searched")
	}
	if _, ok := w.TryGetSystem("missing"); ok {
		t.Fatal("found a missing system")
	}
	if _, ok := TryGetSystemAs[*recorder](w, "first"); ok {
		t.Fatal("TryGetSystemAs ignored the type")
	}

	c, err := FindSystem[counter](w)
	if err != nil || c != counter(first) {
		t.Fatalf("FindSystem = %v, %v; want the first in order", c, err)
	}
	if _, err := FindSystem[*countingSystem](w); !errors.Is(err, ErrConcreteCapability) {
		t.Fatalf("err = %v, want ErrConcreteCapability", err)
	}
	if _, err := FindSystem[Disposer](w); err != nil {
		t.Fatalf("draw-phase capability not found: %v", err)
	}
	if _, err := FindSystem[interface{ Missing() }](w); !errors.Is(err, ErrSystemNotFound) {
		t.Fatalf("err = %v, want ErrSystemNotFound", err)
	}
}

func TestFindSystemConcreteOutsideDebug(t *testing.T) {
	cs := &countingSystem{}
	w := newTestWorld(t, Registration{Name: "c", Factory: provide(cs)})
	got, err := FindSystem[*countingSystem](w)
	if err != nil || got != cs {
		t.Fatalf("FindSystem = %v, %v", got, err)
	}
}

func TestFrameCounter(t *testing.T) {
	cs := &countingSystem{}
	w := newTestWorld(t, Registration{Name: "c", Factory: provide(cs)})
	for i := 0; i < 3; i++ {
		w.Update(FrameTime{})
		w.Draw(FrameTime{})
	}
	if cs.Count() != 3 || w.Stats().Frames != 3 {
		t.Fatalf("runs %d frames %d", cs.Count(), w.Stats().Frames)
	}
}
