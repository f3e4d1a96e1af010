package ecs

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrDisposed = errors.New("world disposed")

// Initialize hands services to every system implementing Initializer, update
// systems first, each phase in execution order. It is called once by the
// host before the first frame.
func (w *World) Initialize(services Services) error {
	if w.disposed {
		return ErrDisposed
	}
	if services == nil {
		services = ServiceMap{}
	}
	for _, entries := range [][]*systemEntry{w.update, w.draw} {
		for _, en := range entries {
			initializer, ok := en.sys.(Initializer)
			if !ok {
				continue
			}
			if err := initializer.Initialize(services); err != nil {
				w.log.Error("system initialize failed",
					zap.String("system", en.reg.Name),
					zap.Error(err))
				return fmt.Errorf("initialize system %s: %w", en.reg.Name, err)
			}
		}
	}
	w.initialized = true
	return nil
}

// Update drains the removal and change queues into every system, then runs
// the enabled update systems in order.
func (w *World) Update(ft FrameTime) {
	if w.disposed {
		return
	}
	w.drain()
	w.run(w.update, ft)
	w.frames.Add(1)
}

// Draw runs the enabled draw systems in order. Draw systems receive their
// notifications in Update's drain.
func (w *World) Draw(ft FrameTime) {
	if w.disposed {
		return
	}
	w.run(w.draw, ft)
}

func (w *World) run(entries []*systemEntry, ft FrameTime) {
	for _, en := range entries {
		if !en.enabled() {
			continue
		}
		if !en.sys.Begin(ft) {
			continue
		}
		en.sys.Run(ft)
		en.sys.End(ft)
	}
}

// drain snapshots both queues and delivers removals first. Removals reach every system:
// a released entity no longer carries its mask and its slot may already be
// reused. Changes reach the systems whose mask admits the entity.
// Sequentially, each entity visits all systems before the next entity; with
// workers, each system works through its removals then its changes on its
// own goroutine.
func (w *World) drain() {
	// Changes are taken first so a recycled entity's change can never be
	// drained ahead of the removal of its previous life.
	w.changedSnap = w.changed.drain(w.changedSnap)
	w.removedSnap = w.removed.drain(w.removedSnap)
	removed, changed := w.removedSnap, w.changedSnap
	if len(removed) == 0 && len(changed) == 0 {
		return
	}

	// Entities destroyed after being queued as changed are only seen as removals.
	live := changed[:0]
	for _, e := range changed {
		if e.Initialized() {
			live = append(live, e)
		}
	}
	changed = live

	if w.runner.Parallel() {
		w.runner.Each(len(w.observers), func(i int) {
			en := w.observers[i]
			for _, e := range removed {
				en.sys.EntityRemoved(e)
			}
			for _, e := range changed {
				if en.reg.Flags.Admits(e.Flags()) {
					en.sys.EntityChanged(e)
				}
			}
		})
	} else {
		for _, e := range removed {
			for _, en := range w.observers {
				en.sys.EntityRemoved(e)
			}
		}
		for _, e := range changed {
			flags := e.Flags()
			for _, en := range w.observers {
				if en.reg.Flags.Admits(flags) {
					en.sys.EntityChanged(e)
				}
			}
		}
	}

	if ce := w.log.Check(zap.DebugLevel, "entity queues drained"); ce != nil {
		ce.Write(zap.Int("removed", len(removed)), zap.Int("changed", len(changed)))
	}
	clear(w.removedSnap)
	clear(w.changedSnap)
}

// Dispose releases every system (last first), every live entity and its
// components, and clears queues, templates and pools. The World is unusable
// afterwards.
func (w *World) Dispose() {
	if w.disposed {
		return
	}
	w.disposed = true

	for _, entries := range [][]*systemEntry{w.draw, w.update} {
		for i := len(entries) - 1; i >= 0; i-- {
			if d, ok := entries[i].sys.(Disposer); ok {
				d.Dispose()
			}
		}
	}

	w.mu.Lock()
	live := make([]*Entity, w.count)
	copy(live, w.entities[:w.count])
	clear(w.entities)
	clear(w.index)
	w.count = 0
	w.mu.Unlock()
	for _, e := range live {
		w.release(e)
	}

	w.changed.reset()
	w.removed.reset()
	w.tmplMu.Lock()
	clear(w.templates)
	w.tmplMu.Unlock()
	w.update, w.draw, w.observers = nil, nil, nil
	w.pool.reset()
	w.kinds.reset()
	w.hub.Clear()

	w.log.Info("world disposed", zap.Int("entities", len(live)))
}
