package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// branch is the outcome of one fan-out item. A failed branch carries its
// error instead of aborting siblings; the stage decides how to degrade.
type branch[T any] struct {
	value T
	err   error
}

// fanOut maps fn over items on a bounded worker pool and joins all results.
// Branch errors never cancel the group; every item yields exactly one branch,
// in input order.
func fanOut[I, T any](ctx context.Context, workers int, items []I, fn func(context.Context, int, I) (T, error)) []branch[T] {
	results := make([]branch[T], len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			v, err := fn(gctx, i, item)
			results[i] = branch[T]{value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
