package opt

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minParallel is the item count below which fan-out costs more than it saves.
const minParallel = 64

// parallelFor splits [0,n) into contiguous chunks and runs fn on each with at
// most workers goroutines. Chunks write to disjoint index ranges, so callers
// get the same result regardless of scheduling.
func parallelFor(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || n < minParallel {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
