package sim

import "github.com/l1jgo/ecscore/internal/core/ecs"

// Component kind names, as used by manifests and scripts.
const (
	KindPosition = "position"
	KindVelocity = "velocity"
	KindLifetime = "lifetime"
)

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Velocity is in units per second.
type Velocity struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Lifetime counts down in seconds; the entity expires at zero.
type Lifetime struct {
	Remaining float64 `yaml:"remaining"`
}

// Kinds bundles the typed handles of the simulation's components.
type Kinds struct {
	Position ecs.Kind[Position]
	Velocity ecs.Kind[Velocity]
	Lifetime ecs.Kind[Lifetime]
}

// RegisterKinds registers the simulation components with w. Registering
// again returns the same handles.
func RegisterKinds(w *ecs.World) (Kinds, error) {
	var (
		k   Kinds
		err error
	)
	if k.Position, err = ecs.RegisterComponent[Position](w, KindPosition); err != nil {
		return Kinds{}, err
	}
	if k.Velocity, err = ecs.RegisterComponent[Velocity](w, KindVelocity); err != nil {
		return Kinds{}, err
	}
	if k.Lifetime, err = ecs.RegisterComponent[Lifetime](w, KindLifetime); err != nil {
		return Kinds{}, err
	}
	return k, nil
}
