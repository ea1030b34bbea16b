package regional

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// runIndexed maps fn over the indices [0, n) on a bounded worker pool.
// Workers write results into index-addressed storage owned by the caller, so
// phase output never depends on completion order. workers <= 0 means one
// worker per CPU.
func runIndexed(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
