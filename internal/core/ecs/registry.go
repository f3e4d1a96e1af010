package ecs

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/ecscore/internal/config"
)

var (
	ErrDuplicateComponent = errors.New("component kind already attached")
	ErrUnknownComponent   = errors.New("unknown component kind")
	ErrKindMismatch       = errors.New("component kind registered with another type")
	ErrTooManyKinds       = errors.New("too many component kinds")
)

// pooler is the type-erased face of a ComponentPool, used where the kind is
// only known by name.
type pooler interface {
	takeAny(pooled bool) (any, func(any))
	Stats() PoolStats
	reset()
}

type kindEntry struct {
	id     ComponentID
	name   string
	typ    reflect.Type
	pool   pooler
	handle any // Kind[T]
}

// kindRegistry assigns component ids and owns one pool per kind.
type kindRegistry struct {
	mu     sync.RWMutex
	byName map[string]*kindEntry
	list   []*kindEntry
	cfg    config.WorldConfig
}

func newKindRegistry(cfg config.WorldConfig) *kindRegistry {
	return &kindRegistry{
		byName: make(map[string]*kindEntry, 16),
		list:   make([]*kindEntry, 0, 16),
		cfg:    cfg,
	}
}

func (r *kindRegistry) lookup(name string) (*kindEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[name]
	return k, ok
}

func (r *kindRegistry) names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.list))
	for _, k := range r.list {
		out = append(out, k.name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *kindRegistry) stats() []PoolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PoolStats, 0, len(r.list))
	for _, k := range r.list {
		out = append(out, k.pool.Stats())
	}
	return out
}

func (r *kindRegistry) reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.list {
		k.pool.reset()
	}
}

// RegisterComponent returns the handle for the kind called name, creating it
// and its pool on first use. Pool settings come from the world's per-kind
// overrides, else its pooling defaults. Registering the same name with a
// different Go type fails with ErrKindMismatch.
func RegisterComponent[T any](w *World, name string) (Kind[T], error) {
	r := w.kinds
	typ := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.byName[name]; ok {
		if k.typ != typ {
			return Kind[T]{}, fmt.Errorf("%w: %q is %s, not %s", ErrKindMismatch, name, k.typ, typ)
		}
		return k.handle.(Kind[T]), nil
	}
	if len(r.list) > math.MaxUint16 {
		return Kind[T]{}, fmt.Errorf("%w: %q", ErrTooManyKinds, name)
	}

	pool := NewComponentPool[T](name, r.cfg.PoolFor(name))
	k := Kind[T]{id: ComponentID(len(r.list)), name: name, pool: pool}
	entry := &kindEntry{id: k.id, name: name, typ: typ, pool: pool, handle: k}
	r.byName[name] = entry
	r.list = append(r.list, entry)
	w.log.Debug("component kind registered",
		zap.String("kind", name),
		zap.Uint16("id", uint16(k.id)),
		zap.Bool("pooling", pool.Pooling()))
	return k, nil
}

// MustRegisterComponent is RegisterComponent for startup code that treats a
// mismatch as fatal.
func MustRegisterComponent[T any](w *World, name string) Kind[T] {
	k, err := RegisterComponent[T](w, name)
	if err != nil {
		panic(err)
	}
	return k
}

// Add attaches a pooled instance of k to e, configured by configure. If e
// is already initialized it is queued as changed.
func Add[T any](w *World, e *Entity, k Kind[T], configure func(*T)) error {
	return add(w, e, k, true, configure)
}

// AddFresh is Add with pooling bypassed for this one instance.
func AddFresh[T any](w *World, e *Entity, k Kind[T], configure func(*T)) error {
	return add(w, e, k, false, configure)
}

func add[T any](w *World, e *Entity, k Kind[T], pooled bool, configure func(*T)) error {
	if !k.Valid() {
		return ErrUnknownComponent
	}
	if e.Has(k.id) {
		return fmt.Errorf("%w: %s on entity %d", ErrDuplicateComponent, k.name, e.ID())
	}
	c, release := k.pool.take(pooled)
	if configure != nil {
		configure(c)
	}
	if !e.attach(k.id, attached{value: c, release: release}) {
		if release != nil {
			release(c)
		}
		return fmt.Errorf("%w: %s on entity %d", ErrDuplicateComponent, k.name, e.ID())
	}
	w.markChanged(e)
	return nil
}

// Remove detaches k from e, hands the detached instance to configure, and
// releases it to its pool. It reports false when e had no such component.
func Remove[T any](w *World, e *Entity, k Kind[T], configure func(*T)) bool {
	return remove(w, e, k, true, configure)
}

// Detach is Remove without returning the instance to its pool; configure is
// the caller's last chance to take ownership of it.
func Detach[T any](w *World, e *Entity, k Kind[T], configure func(*T)) bool {
	return remove(w, e, k, false, configure)
}

func remove[T any](w *World, e *Entity, k Kind[T], release bool, configure func(*T)) bool {
	if !k.Valid() {
		return false
	}
	a, ok := e.detach(k.id)
	if !ok {
		return false
	}
	if configure != nil {
		if c, ok := a.value.(*T); ok {
			configure(c)
		}
	}
	if release && a.release != nil {
		a.release(a.value)
	}
	w.markChanged(e)
	return true
}

// Get reads the k component off e.
func Get[T any](e *Entity, k Kind[T]) (*T, bool) {
	v, ok := e.component(k.id)
	if !ok {
		return nil, false
	}
	c, ok := v.(*T)
	return c, ok
}

func Has[T any](e *Entity, k Kind[T]) bool {
	return e.Has(k.id)
}

// AddNamed attaches a pooled instance of the kind called name, decoding
// fields into it with YAML field rules. Used by scripted templates.
func (w *World) AddNamed(e *Entity, name string, fields map[string]any) error {
	k, ok := w.kinds.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	if e.Has(k.id) {
		return fmt.Errorf("%w: %s on entity %d", ErrDuplicateComponent, name, e.ID())
	}
	c, release := k.pool.takeAny(true)
	if len(fields) > 0 {
		if err := decodeFields(c, fields); err != nil {
			if release != nil {
				release(c)
			}
			return fmt.Errorf("decode %s: %w", name, err)
		}
	}
	if !e.attach(k.id, attached{value: c, release: release}) {
		if release != nil {
			release(c)
		}
		return fmt.Errorf("%w: %s on entity %d", ErrDuplicateComponent, name, e.ID())
	}
	w.markChanged(e)
	return nil
}

// RemoveNamed detaches and releases the kind called name from e.
func (w *World) RemoveNamed(e *Entity, name string) bool {
	k, ok := w.kinds.lookup(name)
	if !ok {
		return false
	}
	a, ok := e.detach(k.id)
	if !ok {
		return false
	}
	if a.release != nil {
		a.release(a.value)
	}
	w.markChanged(e)
	return true
}

func (w *World) HasNamed(e *Entity, name string) bool {
	k, ok := w.kinds.lookup(name)
	return ok && e.Has(k.id)
}

// ComponentKinds lists the registered kind names.
func (w *World) ComponentKinds() []string {
	return w.kinds.names()
}

func decodeFields(dst any, fields map[string]any) error {
	raw, err := yaml.Marshal(fields)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, dst)
}
