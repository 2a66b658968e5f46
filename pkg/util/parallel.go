package util

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel runs fn for every input with at most workerLimit in flight. The
// first error cancels the context passed to the remaining calls and is returned.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, int, T) error) error {
	if len(inputs) == 0 {
		return nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit)
	for i, item := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i, item)
		})
	}
	return g.Wait()
}
