package ecs

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/system"
)

var ErrMissingFactory = errors.New("system registration has no factory")

// FrameTime is the host's timing for one frame.
type FrameTime struct {
	Elapsed time.Duration // since the previous frame
	Total   time.Duration // since the host loop started
}

// System processes the entities it has claimed once per frame of its phase.
// EntityChanged and EntityRemoved run during the drain at the start of
// Update; Begin, Run and End run in phase order afterwards. Begin returning
// false skips Run and End for that frame.
type System interface {
	EntityChanged(e *Entity)
	EntityRemoved(e *Entity)
	Begin(ft FrameTime) bool
	Run(ft FrameTime)
	End(ft FrameTime)
}

// Initializer is implemented by systems that need host services before the
// first frame.
type Initializer interface {
	Initialize(services Services) error
}

// Disposer is implemented by systems holding resources to release at
// shutdown.
type Disposer interface {
	Dispose()
}

// Toggler is implemented by systems that can be switched off; disabled
// systems still receive drain notifications.
type Toggler interface {
	Enabled() bool
}

// Factory constructs a system bound to its world.
type Factory func(w *World) (System, error)

// Registration is the declarative configuration of one system type.
type Registration struct {
	Name    string
	After   []string // systems that must run before this one
	Before  []string // systems that must run after this one
	Replace string   // system this one substitutes for
	Flags   SystemFlags
	Phase   system.Phase
	Factory Factory
}

func (r Registration) Constraint() system.Constraint {
	return system.Constraint{
		Name:    r.Name,
		After:   r.After,
		Before:  r.Before,
		Replace: r.Replace,
	}
}

// Services is the host's lookup handle passed to Initialize.
type Services interface {
	Service(name string) (any, bool)
}

// ServiceMap is a fixed set of named services.
type ServiceMap map[string]any

func (m ServiceMap) Service(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Base gives systems the optional pieces of System: an always-true Begin,
// an empty End, ignored notifications and an enable switch. Embed it and
// override what the system needs.
type Base struct {
	disabled atomic.Bool
}

func (b *Base) Enabled() bool         { return !b.disabled.Load() }
func (b *Base) SetEnabled(on bool)    { b.disabled.Store(!on) }
func (b *Base) EntityChanged(*Entity) {}
func (b *Base) EntityRemoved(*Entity) {}
func (b *Base) Begin(FrameTime) bool  { return true }
func (b *Base) End(FrameTime)         {}

type systemEntry struct {
	reg     Registration
	sys     System
	toggler Toggler
}

func (en *systemEntry) enabled() bool {
	return en.toggler == nil || en.toggler.Enabled()
}

// OrderRegistrations validates regs and splits them into independently
// ordered update and draw sequences.
func OrderRegistrations(regs []Registration, log *zap.Logger) (update, draw []Registration, err error) {
	for _, r := range regs {
		if !r.Phase.Valid() {
			return nil, nil, fmt.Errorf("system %q: %w: %d", r.Name, system.ErrInvalidPhase, int(r.Phase))
		}
		if r.Phase == system.PhaseDraw {
			draw = append(draw, r)
		} else {
			update = append(update, r)
		}
	}
	if update, err = system.Order(update, log); err != nil {
		return nil, nil, fmt.Errorf("order update systems: %w", err)
	}
	if draw, err = system.Order(draw, log); err != nil {
		return nil, nil, fmt.Errorf("order draw systems: %w", err)
	}
	return update, draw, nil
}

func (w *World) install(regs []Registration) error {
	update, draw, err := OrderRegistrations(regs, w.log)
	if err != nil {
		return err
	}
	if w.update, err = w.instantiate(update); err != nil {
		return err
	}
	if w.draw, err = w.instantiate(draw); err != nil {
		return err
	}

	w.observers = make([]*systemEntry, 0, len(w.update)+len(w.draw))
	for i := len(w.update) - 1; i >= 0; i-- {
		w.observers = append(w.observers, w.update[i])
	}
	for i := len(w.draw) - 1; i >= 0; i-- {
		w.observers = append(w.observers, w.draw[i])
	}

	w.log.Info("system order",
		zap.Strings("update", names(w.update)),
		zap.Strings("draw", names(w.draw)))
	return nil
}

func (w *World) instantiate(regs []Registration) ([]*systemEntry, error) {
	out := make([]*systemEntry, 0, len(regs))
	for _, r := range regs {
		if r.Factory == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingFactory, r.Name)
		}
		sys, err := r.Factory(w)
		if err != nil {
			return nil, fmt.Errorf("construct system %s: %w", r.Name, err)
		}
		en := &systemEntry{reg: r, sys: sys}
		en.toggler, _ = sys.(Toggler)
		out = append(out, en)
	}
	return out, nil
}

func names(entries []*systemEntry) []string {
	out := make([]string, len(entries))
	for i, en := range entries {
		out[i] = en.reg.Name
	}
	return out
}

// UpdateOrder returns the update system names in execution order.
func (w *World) UpdateOrder() []string { return names(w.update) }

// DrawOrder returns the draw system names in execution order.
func (w *World) DrawOrder() []string { return names(w.draw) }
