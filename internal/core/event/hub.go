package event

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("broadcast key not registered")

// key pairs a name with the producer's signature, so the same name may be
// served by producers of different shapes.
type key struct {
	name string
	sig  reflect.Type
}

// Hub is a name-keyed registry of value producers. Producers are called on
// the fetching goroutine; the hub only guards the registry.
type Hub struct {
	mu        sync.RWMutex
	producers map[key]any
}

func NewHub() *Hub {
	return &Hub{
		producers: make(map[key]any),
	}
}

func register[F any](h *Hub, name string, fn F) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.producers[key{name: name, sig: reflect.TypeFor[F]()}] = fn
}

func lookup[F any](h *Hub, name string) (F, error) {
	sig := reflect.TypeFor[F]()
	h.mu.RLock()
	p, ok := h.producers[key{name: name, sig: sig}]
	h.mu.RUnlock()
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %q (%s)", ErrNotFound, name, sig)
	}
	return p.(F), nil
}

// Provide registers a producer returning T by value, replacing any earlier
// producer of the same name and shape.
func Provide[T any](h *Hub, name string, fn func() T) {
	register(h, name, fn)
}

// ProvideRef registers a producer returning a shared *T.
func ProvideRef[T any](h *Hub, name string, fn func() *T) {
	register(h, name, fn)
}

// Provide1 through Provide4 register producers that fill out-parameters.

func Provide1[A any](h *Hub, name string, fn func(a *A)) {
	register(h, name, fn)
}

func Provide2[A, B any](h *Hub, name string, fn func(a *A, b *B)) {
	register(h, name, fn)
}

func Provide3[A, B, C any](h *Hub, name string, fn func(a *A, b *B, c *C)) {
	register(h, name, fn)
}

func Provide4[A, B, C, D any](h *Hub, name string, fn func(a *A, b *B, c *C, d *D)) {
	register(h, name, fn)
}

// Fetch calls the by-value producer registered under name.
func Fetch[T any](h *Hub, name string) (T, error) {
	fn, err := lookup[func() T](h, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(), nil
}

func FetchRef[T any](h *Hub, name string) (*T, error) {
	fn, err := lookup[func() *T](h, name)
	if err != nil {
		return nil, err
	}
	return fn(), nil
}

func Fetch1[A any](h *Hub, name string, a *A) error {
	fn, err := lookup[func(*A)](h, name)
	if err != nil {
		return err
	}
	fn(a)
	return nil
}

func Fetch2[A, B any](h *Hub, name string, a *A, b *B) error {
	fn, err := lookup[func(*A, *B)](h, name)
	if err != nil {
		return err
	}
	fn(a, b)
	return nil
}

func Fetch3[A, B, C any](h *Hub, name string, a *A, b *B, c *C) error {
	fn, err := lookup[func(*A, *B, *C)](h, name)
	if err != nil {
		return err
	}
	fn(a, b, c)
	return nil
}

func Fetch4[A, B, C, D any](h *Hub, name string, a *A, b *B, c *C, d *D) error {
	fn, err := lookup[func(*A, *B, *C, *D)](h, name)
	if err != nil {
		return err
	}
	fn(a, b, c, d)
	return nil
}

// Withdraw removes every producer registered under name and returns how
// many there were.
func (h *Hub) Withdraw(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for k := range h.producers {
		if k.name == name {
			delete(h.producers, k)
			n++
		}
	}
	return n
}

// Names lists the registered names, each once.
func (h *Hub) Names() []string {
	h.mu.RLock()
	seen := make(map[string]struct{}, len(h.producers))
	for k := range h.producers {
		seen[k.name] = struct{}{}
	}
	h.mu.RUnlock()
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) Clear() {
	h.mu.Lock()
	clear(h.producers)
	h.mu.Unlock()
}
