package sim

import (
	"math"

	"github.com/l1jgo/ecscore/internal/core/ecs"
)

// Tracker is implemented by systems that report how many entities they
// currently hold.
type Tracker interface {
	Tracked() int
}

// Movement integrates velocity into position. With a damping factor the
// velocity also decays by that fraction per second.
type Movement struct {
	ecs.Base
	claims  *ecs.Claims2[Position, Velocity]
	damping float64
}

func newMovement(damping float64) ecs.Factory {
	return func(w *ecs.World) (ecs.System, error) {
		k, err := RegisterKinds(w)
		if err != nil {
			return nil, err
		}
		return &Movement{
			claims:  ecs.NewClaims2(k.Position, k.Velocity),
			damping: damping,
		}, nil
	}
}

func (m *Movement) EntityChanged(e *ecs.Entity) { m.claims.Claim(e) }
func (m *Movement) EntityRemoved(e *ecs.Entity) { m.claims.Drop(e) }
func (m *Movement) Begin(ecs.FrameTime) bool    { return m.claims.Len() > 0 }
func (m *Movement) Tracked() int                { return m.claims.Len() }

func (m *Movement) Run(ft ecs.FrameTime) {
	dt := ft.Elapsed.Seconds()
	keep := 1.0
	if m.damping > 0 {
		keep = math.Max(0, 1-m.damping*dt)
	}
	m.claims.Each(func(_ *ecs.Entity, p *Position, v *Velocity) {
		v.X *= keep
		v.Y *= keep
		p.X += v.X * dt
		p.Y += v.Y * dt
	})
}
