package ecs

import (
	"sort"
	"sync"
)

// EntityID encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments each time the slot is recycled so
// ids minted from the same slot never repeat while the slot lives.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// SystemFlags is the membership bitmask carried by entities and systems.
type SystemFlags uint64

// Admits reports whether a system with mask s may observe an entity with
// the given mask. A zero mask on either side admits everything.
func (s SystemFlags) Admits(entity SystemFlags) bool {
	return entity == 0 || s == 0 || s&entity != 0
}

// attached pairs a component instance with the release capability captured
// when it was allocated. release is nil for instances that bypass pooling.
type attached struct {
	value   any
	release func(any)
}

// Entity is a pooled identity slot with at most one component per kind.
// An *Entity is recycled after Destroy; holders must not keep it past that.
type Entity struct {
	mu          sync.RWMutex
	id          EntityID
	name        string
	flags       SystemFlags
	initialized bool
	components  map[ComponentID]attached

	// owned by EntityPool
	slot       uint32
	generation uint32
	pooled     bool
}

func (e *Entity) ID() EntityID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id
}

func (e *Entity) Name() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

// SetName sets the diagnostic name.
func (e *Entity) SetName(name string) {
	e.mu.Lock()
	e.name = name
	e.mu.Unlock()
}

func (e *Entity) Flags() SystemFlags {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.flags
}

// SetFlags replaces the membership mask. Systems only re-evaluate an entity
// when its component set changes, so set flags from the initializer.
func (e *Entity) SetFlags(flags SystemFlags) {
	e.mu.Lock()
	e.flags = flags
	e.mu.Unlock()
}

func (e *Entity) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Has reports whether a component of the given kind is attached.
func (e *Entity) Has(id ComponentID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.components[id]
	return ok
}

func (e *Entity) ComponentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.components)
}

// Kinds returns the ids of every attached component, ascending.
func (e *Entity) Kinds() []ComponentID {
	e.mu.RLock()
	ids := make([]ComponentID, 0, len(e.components))
	for id := range e.components {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Entity) component(id ComponentID) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.components[id]
	return a.value, ok
}

func (e *Entity) attach(id ComponentID, a attached) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.components[id]; dup {
		return false
	}
	e.components[id] = a
	return true
}

func (e *Entity) detach(id ComponentID) (attached, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.components[id]
	if ok {
		delete(e.components, id)
	}
	return a, ok
}

func (e *Entity) detachAll() []attached {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.components) == 0 {
		return nil
	}
	out := make([]attached, 0, len(e.components))
	for id, a := range e.components {
		out = append(out, a)
		delete(e.components, id)
	}
	return out
}

func (e *Entity) markInitialized() {
	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
}

func (e *Entity) retire() {
	e.mu.Lock()
	e.initialized = false
	e.mu.Unlock()
}

// EntityPool recycles entity slots through a lock-protected free list.
type EntityPool struct {
	mu        sync.Mutex
	free      []*Entity
	nextIndex uint32
}

func NewEntityPool(capacity int) *EntityPool {
	return &EntityPool{
		free: make([]*Entity, 0, capacity),
	}
}

// Take pops a free entity, or constructs one when none is free, and assigns
// it id. A zero id mints a fresh one from the slot's index and generation.
func (p *EntityPool) Take(id EntityID) *Entity {
	p.mu.Lock()
	var e *Entity
	if n := len(p.free); n > 0 {
		e = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		e = &Entity{
			slot:       p.nextIndex,
			generation: 1,
			components: make(map[ComponentID]attached, 4),
		}
		p.nextIndex++
	}
	e.pooled = false
	p.mu.Unlock()

	e.mu.Lock()
	if id.IsZero() {
		id = NewEntityID(e.slot, e.generation)
	}
	e.id = id
	e.initialized = false
	e.mu.Unlock()
	return e
}

// Release marks e uninitialized and returns it to the free list. Its
// component map must already be empty. Releasing an entity that is
// already free is a no-op and reports false.
func (p *EntityPool) Release(e *Entity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.pooled {
		return false
	}
	e.mu.Lock()
	e.initialized = false
	e.id = 0
	e.name = ""
	e.flags = 0
	e.generation++
	if e.generation == 0 {
		e.generation = 1
	}
	clear(e.components)
	e.mu.Unlock()
	e.pooled = true
	p.free = append(p.free, e)
	return true
}

// Free returns the number of entities waiting for reuse.
func (p *EntityPool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Created returns the number of entities ever constructed by the pool.
func (p *EntityPool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.nextIndex)
}

func (p *EntityPool) reset() {
	p.mu.Lock()
	clear(p.free)
	p.free = p.free[:0]
	p.mu.Unlock()
}
