package ecs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/event"
	"github.com/l1jgo/ecscore/internal/core/system"
)

var (
	ErrDuplicateEntity   = errors.New("entity id already live")
	ErrDuplicateTemplate = errors.New("template already registered")
	ErrNilInitializer    = errors.New("nil template initializer")

	ErrExplicitGeneration = errors.New("explicit entity id must have generation 0")
)

// InitFunc configures a freshly taken entity before it becomes visible to
// systems. Components added here do not queue extra change notifications.
type InitFunc func(w *World, e *Entity) error

type createOptions struct {
	id    EntityID
	name  string
	flags SystemFlags
}

type CreateOption func(*createOptions)

// WithID creates the entity under a caller-chosen id instead of a fresh one.
// Explicit ids must have generation 0; fresh ids always carry a generation of
// at least 1, so the two never collide.
func WithID(id EntityID) CreateOption {
	return func(o *createOptions) { o.id = id }
}

// WithFlags sets the membership mask; zero lets every system observe it.
func WithFlags(flags SystemFlags) CreateOption {
	return func(o *createOptions) { o.flags = flags }
}

func WithName(name string) CreateOption {
	return func(o *createOptions) { o.name = name }
}

// World is the entity registry. It owns the entity and component pools, the
// dense array of live entities, the change/removal queues drained once per
// frame, the named templates, and the ordered update and draw systems.
type World struct {
	log   *zap.Logger
	cfg   config.WorldConfig
	pool  *EntityPool
	kinds *kindRegistry
	hub   *event.Hub

	mu       sync.Mutex // entities, count, index
	entities []*Entity
	count    int
	index    map[EntityID]int

	changed     *entityQueue
	removed     *entityQueue
	changedSnap []*Entity // owned by the frame goroutine
	removedSnap []*Entity

	tmplMu    sync.RWMutex
	templates map[string]InitFunc

	runner    *system.Runner
	update    []*systemEntry
	draw      []*systemEntry
	observers []*systemEntry // drain order: update then draw, each last-registered first

	frames      atomic.Uint64
	initialized bool
	disposed    bool
}

// NewWorld builds a registry, orders regs into update and draw sequences and
// instantiates one system per registration in final order. Any ordering or
// construction error aborts; no partially built World is returned.
func NewWorld(cfg config.WorldConfig, log *zap.Logger, regs []Registration) (*World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.InitialCapacity = max(cfg.InitialCapacity, 1)
	if cfg.DrainBuffer <= 0 {
		cfg.DrainBuffer = cfg.InitialCapacity
	}

	w := &World{
		log:         log,
		cfg:         cfg,
		pool:        NewEntityPool(cfg.InitialCapacity),
		kinds:       newKindRegistry(cfg),
		hub:         event.NewHub(),
		entities:    make([]*Entity, cfg.InitialCapacity),
		index:       make(map[EntityID]int, cfg.InitialCapacity),
		changed:     newEntityQueue(cfg.DrainBuffer),
		removed:     newEntityQueue(cfg.DrainBuffer),
		changedSnap: make([]*Entity, 0, cfg.DrainBuffer),
		removedSnap: make([]*Entity, 0, cfg.DrainBuffer),
		templates:   make(map[string]InitFunc),
		runner:      system.NewRunner(cfg.Workers),
	}
	w.provideDiagnostics()

	if err := w.install(regs); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) Logger() *zap.Logger { return w.log }

// Broadcast returns the world's name-keyed broadcast hub.
func (w *World) Broadcast() *event.Hub { return w.hub }

func (w *World) Debug() bool { return w.cfg.Debug }

// Create takes an entity slot, runs init, appends the entity to the dense
// array and queues it as changed.
func (w *World) Create(init InitFunc, opts ...CreateOption) (*Entity, error) {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.id.Generation() != 0 {
		return nil, fmt.Errorf("%w: %d has generation %d", ErrExplicitGeneration, o.id, o.id.Generation())
	}

	e := w.pool.Take(o.id)
	e.mu.Lock()
	e.name = o.name
	e.flags = o.flags
	id := e.id
	e.mu.Unlock()

	if init != nil {
		if err := init(w, e); err != nil {
			w.discard(e)
			return nil, fmt.Errorf("initialize entity %d: %w", id, err)
		}
	}

	w.mu.Lock()
	if _, dup := w.index[id]; dup {
		w.mu.Unlock()
		w.discard(e)
		return nil, fmt.Errorf("%w: %d", ErrDuplicateEntity, id)
	}
	if w.count == len(w.entities) {
		grown := make([]*Entity, 2*len(w.entities))
		copy(grown, w.entities)
		w.entities = grown
	}
	w.entities[w.count] = e
	w.index[id] = w.count
	w.count++
	w.mu.Unlock()

	e.markInitialized()
	w.changed.push(e)
	return e, nil
}

// CreateFrom runs the named template before init. An unknown template name
// behaves as if none was given.
func (w *World) CreateFrom(template string, init InitFunc, opts ...CreateOption) (*Entity, error) {
	w.tmplMu.RLock()
	tmpl, ok := w.templates[template]
	w.tmplMu.RUnlock()
	if !ok {
		return w.Create(init, opts...)
	}
	return w.Create(func(w *World, e *Entity) error {
		if err := tmpl(w, e); err != nil {
			return fmt.Errorf("template %s: %w", template, err)
		}
		if init != nil {
			return init(w, e)
		}
		return nil
	}, opts...)
}

func (w *World) AddTemplate(name string, init InitFunc) error {
	if init == nil {
		return fmt.Errorf("%w: %s", ErrNilInitializer, name)
	}
	w.tmplMu.Lock()
	defer w.tmplMu.Unlock()
	if _, dup := w.templates[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTemplate, name)
	}
	w.templates[name] = init
	w.log.Debug("template added", zap.String("template", name))
	return nil
}

// RemoveTemplate reports whether name was registered.
func (w *World) RemoveTemplate(name string) bool {
	w.tmplMu.Lock()
	defer w.tmplMu.Unlock()
	if _, ok := w.templates[name]; !ok {
		return false
	}
	delete(w.templates, name)
	w.log.Debug("template removed", zap.String("template", name))
	return true
}

func (w *World) Templates() []string {
	w.tmplMu.RLock()
	names := make([]string, 0, len(w.templates))
	for name := range w.templates {
		names = append(names, name)
	}
	w.tmplMu.RUnlock()
	sort.Strings(names)
	return names
}

// Destroy swap-removes e from the dense array, releases every component to
// its pool, queues e as removed and recycles the slot. An entity that is not
// registered is not queued. e must not be used afterwards.
//
// The steps run in that order: a drain that delivers the removal already
// sees e uninitialized, and a recycled e is queued as changed only after
// its removal.
func (w *World) Destroy(e *Entity) {
	if e == nil {
		return
	}
	linked := w.unlink(e)
	w.strip(e)
	if linked {
		w.removed.push(e)
	}
	w.pool.Release(e)
}

// unlink swap-removes e from the dense array and reports whether it was there.
func (w *World) unlink(e *Entity) bool {
	id := e.ID()
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.index[id]
	if !ok || w.entities[idx] != e {
		return false
	}
	last := w.count - 1
	moved := w.entities[last]
	w.entities[idx] = moved
	w.index[moved.ID()] = idx
	w.entities[last] = nil
	delete(w.index, id)
	w.count--
	return true
}

// strip marks e uninitialized and returns its components to their pools.
func (w *World) strip(e *Entity) {
	e.retire()
	for _, a := range e.detachAll() {
		if a.release != nil {
			a.release(a.value)
		}
	}
}

// discard recycles an entity that never became visible.
func (w *World) discard(e *Entity) {
	w.release(e)
}

func (w *World) release(e *Entity) {
	w.strip(e)
	w.pool.Release(e)
}

func (w *World) markChanged(e *Entity) {
	if e.Initialized() {
		w.changed.push(e)
	}
}

// Count returns the number of live entities.
func (w *World) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Entities returns a snapshot of the live entities in dense order.
func (w *World) Entities() []*Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Entity, w.count)
	copy(out, w.entities[:w.count])
	return out
}

func (w *World) Lookup(id EntityID) (*Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, ok := w.index[id]
	if !ok {
		return nil, false
	}
	return w.entities[idx], true
}

func (w *World) Alive(id EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.index[id]
	return ok
}

// Stats is a diagnostic snapshot of the registry.
type Stats struct {
	Live       int
	Capacity   int
	Changed    int
	Removed    int
	FreeSlots  int
	Frames     uint64
	Components []PoolStats
}

func (w *World) Stats() Stats {
	w.mu.Lock()
	live, capacity := w.count, len(w.entities)
	w.mu.Unlock()
	return Stats{
		Live:       live,
		Capacity:   capacity,
		Changed:    w.changed.len(),
		Removed:    w.removed.len(),
		FreeSlots:  w.pool.Free(),
		Frames:     w.frames.Load(),
		Components: w.kinds.stats(),
	}
}

func (w *World) provideDiagnostics() {
	event.Provide(w.hub, event.KeyEntityCount, w.Count)
	event.Provide(w.hub, event.KeyFrame, w.frames.Load)
	event.Provide(w.hub, event.KeyStats, w.Stats)
}
