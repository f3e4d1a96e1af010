// Profiling:
// go build ./cmd/ecsbench
// ./ecsbench -mode mem && go tool pprof -http=":8000" ./ecsbench mem.pprof

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/l1jgo/ecscore/internal/config"
	"github.com/l1jgo/ecscore/internal/core/ecs"
	"github.com/l1jgo/ecscore/internal/sim"
)

func main() {
	mode := flag.String("mode", "mem", "profile mode: cpu or mem")
	rounds := flag.Int("rounds", 20, "worlds to build")
	frames := flag.Int("frames", 2000, "frames per world")
	spawn := flag.Int("spawn", 64, "entities spawned per frame")
	workers := flag.Int("workers", 1, "drain workers")
	pooling := flag.Bool("pooling", true, "pool component instances")
	flag.Parse()

	var opt func(*profile.Profile)
	switch *mode {
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfileAllocs
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(1)
	}

	cfg := config.Defaults().World
	cfg.Workers = *workers
	cfg.Pooling.UsePooling = *pooling

	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook)
	start := time.Now()
	if err := run(cfg, *rounds, *frames, *spawn); err != nil {
		p.Stop()
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	p.Stop()
	fmt.Printf("%d rounds × %d frames in %s\n", *rounds, *frames, time.Since(start))
}

// run churns entities through the full spawn → move → expire cycle.
func run(cfg config.WorldConfig, rounds, frames, spawn int) error {
	const dt = 16 * time.Millisecond
	for range rounds {
		w, err := ecs.NewWorld(cfg, nil, sim.Registrations())
		if err != nil {
			return err
		}
		if err := sim.EnsureTemplates(w); err != nil {
			return err
		}
		if err := w.Initialize(ecs.ServiceMap{sim.ServiceSpawnRate: spawn}); err != nil {
			return err
		}
		for i := range frames {
			ft := ecs.FrameTime{Elapsed: dt, Total: time.Duration(i+1) * dt}
			w.Update(ft)
			w.Draw(ft)
		}
		w.Dispose()
	}
	return nil
}
