package ecs

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrSystemNotFound     = errors.New("system not found")
	ErrConcreteCapability = errors.New("type-indexed system lookup needs an interface type")
)

// TryGetSystem returns the system registered under name, searching update
// systems before draw systems.
func (w *World) TryGetSystem(name string) (System, bool) {
	for _, entries := range [][]*systemEntry{w.update, w.draw} {
		for _, en := range entries {
			if en.reg.Name == name {
				return en.sys, true
			}
		}
	}
	return nil, false
}

// TryGetSystemAs returns the system registered under name if it is a T.
func TryGetSystemAs[T any](w *World, name string) (T, bool) {
	var zero T
	sys, ok := w.TryGetSystem(name)
	if !ok {
		return zero, false
	}
	t, ok := sys.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// FindSystem returns the first system, in execution order, implementing the
// capability T. T should be an interface; in debug worlds a concrete T is
// rejected with ErrConcreteCapability.
func FindSystem[T any](w *World) (T, error) {
	var zero T
	if w.cfg.Debug {
		if typ := reflect.TypeFor[T](); typ.Kind() != reflect.Interface {
			return zero, fmt.Errorf("%w: %s", ErrConcreteCapability, typ)
		}
	}
	for _, entries := range [][]*systemEntry{w.update, w.draw} {
		for _, en := range entries {
			if t, ok := en.sys.(T); ok {
				return t, nil
			}
		}
	}
	return zero, fmt.Errorf("%w: %s", ErrSystemNotFound, reflect.TypeFor[T]())
}
