package system

import "golang.org/x/sync/errgroup"

// Runner fans per-system work out over a bounded number of goroutines.
// With one worker it runs inline on the caller's goroutine.
type Runner struct {
	workers int
}

func NewRunner(workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{workers: workers}
}

func (r *Runner) Workers() int { return r.workers }

func (r *Runner) Parallel() bool { return r.workers > 1 }

// Each calls fn for every index in [0, n) and returns once all calls have
// finished. Calls for different indices may run concurrently.
func (r *Runner) Each(n int, fn func(i int)) {
	if r.workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
