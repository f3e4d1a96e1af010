// Package sim is a small particle simulation built on the ECS core. The
// host wires it up from systems.yaml; tests use Registrations directly.
package sim

import (
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/system"
)

const (
	SystemSpawner  = "spawner"
	SystemMovement = "movement"
	SystemDamped   = "damped_movement"
	SystemExpiry   = "expiry"
	SystemStats    = "stats"
)

// Service names read in Initialize.
const (
	ServiceSpawnRate  = "spawn_rate"  // int
	ServiceStatsEvery = "stats_every" // int
	ServiceSeed       = "seed"        // uint64
)

// Broadcast keys provided by the simulation systems.
const (
	KeySpawned = "sim.spawned" // func() uint64
	KeyExpired = "sim.expired" // func(*uint64)
)

const (
	TemplateParticle = "particle"
	DefaultLifetime  = 2.0  // seconds
	DefaultSpeed     = 40.0 // units per second
	DefaultDamping   = 0.5
)

// Factories maps every simulation system name to its constructor.
func Factories() map[string]ecs.Factory {
	return map[string]ecs.Factory{
		SystemSpawner:  newSpawner,
		SystemMovement: newMovement(0),
		SystemDamped:   newMovement(DefaultDamping),
		SystemExpiry:   newExpiry,
		SystemStats:    newStatsLog,
	}
}

// Registrations is the default system set: spawn, move, expire, then a
// stats draw system.
func Registrations() []ecs.Registration {
	f := Factories()
	return []ecs.Registration{
		{Name: SystemStats, Phase: system.PhaseDraw, Factory: f[SystemStats]},
		{Name: SystemExpiry, After: []string{SystemMovement}, Factory: f[SystemExpiry]},
		{Name: SystemMovement, Factory: f[SystemMovement]},
		{Name: SystemSpawner, Before: []string{SystemMovement}, Factory: f[SystemSpawner]},
	}
}

// Damped substitutes damped movement for plain movement.
func Damped() ecs.Registration {
	return ecs.Registration{
		Name:    SystemDamped,
		Replace: SystemMovement,
		Factory: Factories()[SystemDamped],
	}
}

// EnsureTemplates adds a Go particle template when no script provided one.
func EnsureTemplates(w *ecs.World) error {
	for _, name := range w.Templates() {
		if name == TemplateParticle {
			return nil
		}
	}
	k, err := RegisterKinds(w)
	if err != nil {
		return err
	}
	return w.AddTemplate(TemplateParticle, func(w *ecs.World, e *ecs.Entity) error {
		if err := ecs.Add(w, e, k.Position, func(p *Position) { *p = Position{} }); err != nil {
			return err
		}
		if err := ecs.Add(w, e, k.Velocity, func(v *Velocity) { *v = Velocity{X: DefaultSpeed} }); err != nil {
			return err
		}
		return ecs.Add(w, e, k.Lifetime, func(l *Lifetime) { l.Remaining = DefaultLifetime })
	})
}
