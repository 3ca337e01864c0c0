package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// FanOut runs independent fetch units on a bounded worker pool. Units own their
// results and report failures through their own slot, so one unit never cancels
// its siblings.
type FanOut struct {
	Workers     int
	UnitTimeout time.Duration
}

// Each calls fn for every index in [0, n) and waits for all calls to return.
// Each call receives a context bounded by UnitTimeout when set.
func (f FanOut) Each(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if n == 0 {
		return
	}
	var group errgroup.Group
	workers := f.Workers
	if workers <= 0 {
		workers = 1
	}
	group.SetLimit(workers)

	for i := 0; i < n; i++ {
		group.Go(func() error {
			unitCtx := ctx
			if f.UnitTimeout > 0 {
				var cancel context.CancelFunc
				unitCtx, cancel = context.WithTimeout(ctx, f.UnitTimeout)
				defer cancel()
			}
			fn(unitCtx, i)
			return nil
		})
	}
	_ = group.Wait()
}
