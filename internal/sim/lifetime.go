package sim

import (
	"sync/atomic"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
)

// Expiry counts down every Lifetime and destroys the entities that reach
// zero at the end of the frame.
type Expiry struct {
	ecs.Base
	w       *ecs.World
	claims  *ecs.Claims1[Lifetime]
	expired []*ecs.Entity
	total   atomic.Uint64
}

func newExpiry(w *ecs.World) (ecs.System, error) {
	k, err := RegisterKinds(w)
	if err != nil {
		return nil, err
	}
	s := &Expiry{
		w:      w,
		claims: ecs.NewClaims1(k.Lifetime),
	}
	event.Provide1(w.Broadcast(), KeyExpired, func(n *uint64) { *n = s.total.Load() })
	return s, nil
}

func (s *Expiry) EntityChanged(e *ecs.Entity) { s.claims.Claim(e) }
func (s *Expiry) EntityRemoved(e *ecs.Entity) { s.claims.Drop(e) }
func (s *Expiry) Begin(ecs.FrameTime) bool    { return s.claims.Len() > 0 }
func (s *Expiry) Tracked() int                { return s.claims.Len() }

func (s *Expiry) Run(ft ecs.FrameTime) {
	dt := ft.Elapsed.Seconds()
	s.claims.Each(func(e *ecs.Entity, l *Lifetime) {
		l.Remaining -= dt
		if l.Remaining <= 0 {
			s.expired = append(s.expired, e)
		}
	})
}

func (s *Expiry) End(ecs.FrameTime) {
	for _, e := range s.expired {
		s.claims.Drop(e)
		s.w.Destroy(e)
	}
	s.total.Add(uint64(len(s.expired)))
	clear(s.expired)
	s.expired = s.expired[:0]
}

// Expired returns how many entities this system has destroyed.
func (s *Expiry) Expired() uint64 { return s.total.Load() }
