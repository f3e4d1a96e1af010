package ecs

import (
	"sync"

	"github.com/l1jgo/ecscore/internal/config"
)

// ComponentID is the small integer tag assigned to a component kind when it
// is first registered with a World.
type ComponentID uint16

// PoolStats is a point-in-time view of one component pool.
type PoolStats struct {
	Kind    string
	Pooling bool
	Free    int // instances waiting on the free stack
	Created int // instances ever constructed for this kind
}

// ComponentPool is a per-kind free stack of component instances. It grows on
// demand; PoolSize only sizes the stack up front. Released instances keep
// their field values: callers reset whatever they rely on.
type ComponentPool[T any] struct {
	mu         sync.Mutex
	kind       string
	free       []*T
	usePooling bool
	created    int
	releaseFn  func(any)
}

func NewComponentPool[T any](kind string, cfg config.PoolConfig) *ComponentPool[T] {
	p := &ComponentPool[T]{
		kind:       kind,
		usePooling: cfg.UsePooling,
	}
	if cfg.UsePooling {
		p.free = make([]*T, 0, cfg.PoolSize)
	}
	p.releaseFn = p.releaseAny
	return p
}

func (p *ComponentPool[T]) Pooling() bool { return p.usePooling }

// Take pops a free instance, or constructs one when pooling is disabled or
// the stack is empty.
func (p *ComponentPool[T]) Take() *T {
	if !p.usePooling {
		return p.Create()
	}
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return c
	}
	p.created++
	p.mu.Unlock()
	return new(T)
}

// Create constructs a fresh instance without consulting the free stack.
func (p *ComponentPool[T]) Create() *T {
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	return new(T)
}

// Release pushes c back onto the free stack. Instances beyond what the pool
// has ever constructed are dropped, as is everything when pooling is off.
func (p *ComponentPool[T]) Release(c *T) {
	if c == nil || !p.usePooling {
		return
	}
	p.mu.Lock()
	if len(p.free) < p.created {
		p.free = append(p.free, c)
	}
	p.mu.Unlock()
}

func (p *ComponentPool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Kind:    p.kind,
		Pooling: p.usePooling,
		Free:    len(p.free),
		Created: p.created,
	}
}

func (p *ComponentPool[T]) releaseAny(v any) {
	if c, ok := v.(*T); ok {
		p.Release(c)
	}
}

// take allocates an instance and the release capability that goes with it.
func (p *ComponentPool[T]) take(pooled bool) (*T, func(any)) {
	if pooled && p.usePooling {
		return p.Take(), p.releaseFn
	}
	return p.Create(), nil
}

func (p *ComponentPool[T]) takeAny(pooled bool) (any, func(any)) {
	return p.take(pooled)
}

func (p *ComponentPool[T]) reset() {
	p.mu.Lock()
	clear(p.free)
	p.free = p.free[:0]
	p.mu.Unlock()
}

// Kind is a typed handle for one registered component kind.
type Kind[T any] struct {
	id   ComponentID
	name string
	pool *ComponentPool[T]
}

func (k Kind[T]) ID() ComponentID         { return k.id }
func (k Kind[T]) Name() string            { return k.name }
func (k Kind[T]) Pool() *ComponentPool[T] { return k.pool }
func (k Kind[T]) Valid() bool             { return k.pool != nil }
func (k Kind[T]) String() string          { return k.name }
