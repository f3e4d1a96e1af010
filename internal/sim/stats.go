package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/core/event"
)

// Report is one stats sample, read entirely off the world's broadcast hub.
type Report struct {
	Frame    uint64
	Entities int
	Spawned  uint64
	Expired  uint64
	Moving   int
	World    ecs.Stats
}

// StatsLog is a draw system that samples the broadcast hub every N frames
// and logs the result.
type StatsLog struct {
	ecs.Base
	w      *ecs.World
	every  int
	frames int
	last   Report
}

func newStatsLog(w *ecs.World) (ecs.System, error) {
	return &StatsLog{w: w}, nil
}

func (s *StatsLog) Initialize(services ecs.Services) error {
	if v, ok := services.Service(ServiceStatsEvery); ok {
		every, ok := v.(int)
		if !ok {
			return fmt.Errorf("service %s: want int, got %T", ServiceStatsEvery, v)
		}
		s.every = every
	}
	return nil
}

func (s *StatsLog) Begin(ecs.FrameTime) bool {
	s.frames++
	return s.every > 0 && s.frames%s.every == 0
}

func (s *StatsLog) Run(ecs.FrameTime) {
	r, err := s.sample()
	if err != nil {
		s.w.Logger().Warn("stats sample failed", zap.Error(err))
		return
	}
	s.last = r
	s.w.Logger().Info("world stats",
		zap.Uint64("frame", r.Frame),
		zap.Int("entities", r.Entities),
		zap.Uint64("spawned", r.Spawned),
		zap.Uint64("expired", r.Expired),
		zap.Int("moving", r.Moving),
		zap.Int("free_slots", r.World.FreeSlots))
}

func (s *StatsLog) sample() (Report, error) {
	hub := s.w.Broadcast()
	var (
		r   Report
		err error
	)
	if r.Frame, err = event.Fetch[uint64](hub, event.KeyFrame); err != nil {
		return Report{}, err
	}
	if r.Entities, err = event.Fetch[int](hub, event.KeyEntityCount); err != nil {
		return Report{}, err
	}
	if r.World, err = event.Fetch[ecs.Stats](hub, event.KeyStats); err != nil {
		return Report{}, err
	}
	// Spawner and expiry are optional in a manifest.
	r.Spawned, _ = event.Fetch[uint64](hub, KeySpawned)
	_ = event.Fetch1(hub, KeyExpired, &r.Expired)
	// The first tracker in update order is whichever movement system won.
	if tr, err := ecs.FindSystem[Tracker](s.w); err == nil {
		r.Moving = tr.Tracked()
	}
	return r, nil
}

// Last returns the most recent sample.
func (s *StatsLog) Last() Report { return s.last }

func (s *StatsLog) Dispose() {
	if r, err := s.sample(); err == nil {
		s.w.Logger().Info("final stats",
			zap.Uint64("frame", r.Frame),
			zap.Uint64("spawned", r.Spawned),
			zap.Uint64("expired", r.Expired))
	}
}
