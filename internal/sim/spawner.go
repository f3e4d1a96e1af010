package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
)

// Spawner creates Rate particles per frame from the particle template,
// launching each in a random direction.
type Spawner struct {
	ecs.Base
	w       *ecs.World
	kinds   Kinds
	rate    int
	rng     *rand.Rand
	spawned atomic.Uint64
}

func newSpawner(w *ecs.World) (ecs.System, error) {
	k, err := RegisterKinds(w)
	if err != nil {
		return nil, err
	}
	s := &Spawner{
		w:     w,
		kinds: k,
		rng:   rand.New(rand.NewPCG(1, 2)),
	}
	event.Provide(w.Broadcast(), KeySpawned, s.spawned.Load)
	return s, nil
}

// Initialize reads the spawn rate and the optional RNG seed.
func (s *Spawner) Initialize(services ecs.Services) error {
	if v, ok := services.Service(ServiceSpawnRate); ok {
		rate, ok := v.(int)
		if !ok || rate < 0 {
			return fmt.Errorf("service %s: want non-negative int, got %v", ServiceSpawnRate, v)
		}
		s.rate = rate
	}
	if v, ok := services.Service(ServiceSeed); ok {
		seed, ok := v.(uint64)
		if !ok {
			return fmt.Errorf("service %s: want uint64, got %T", ServiceSeed, v)
		}
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return nil
}

func (s *Spawner) Begin(ecs.FrameTime) bool { return s.rate > 0 }

func (s *Spawner) Run(ecs.FrameTime) {
	for range s.rate {
		if _, err := s.w.CreateFrom(TemplateParticle, s.launch, ecs.WithName(TemplateParticle)); err != nil {
			s.w.Logger().Warn("spawn failed", zap.Error(err))
			continue
		}
		s.spawned.Add(1)
	}
}

// launch fills in whatever the template left out and gives the particle a
// random heading at its template speed.
func (s *Spawner) launch(w *ecs.World, e *ecs.Entity) error {
	if !ecs.Has(e, s.kinds.Position) {
		if err := ecs.Add(w, e, s.kinds.Position, func(p *Position) { *p = Position{} }); err != nil {
			return err
		}
	}
	if !ecs.Has(e, s.kinds.Lifetime) {
		if err := ecs.Add(w, e, s.kinds.Lifetime, func(l *Lifetime) { l.Remaining = DefaultLifetime }); err != nil {
			return err
		}
	}
	v, ok := ecs.Get(e, s.kinds.Velocity)
	if !ok {
		if err := ecs.Add(w, e, s.kinds.Velocity, func(v *Velocity) { *v = Velocity{X: DefaultSpeed} }); err != nil {
			return err
		}
		v, _ = ecs.Get(e, s.kinds.Velocity)
	}
	speed := math.Hypot(v.X, v.Y)
	angle := s.rng.Float64() * 2 * math.Pi
	v.X, v.Y = speed*math.Cos(angle), speed*math.Sin(angle)
	return nil
}

func (s *Spawner) Spawned() uint64 { return s.spawned.Load() }
