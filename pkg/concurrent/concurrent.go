// Package concurrent runs bounded fan-out over slices with errgroup.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map applies fn to every item with at most limit calls in flight and
// returns the results in input order. The first error cancels the context
// passed to the remaining calls and is returned. A limit below one means
// no bound.
func Map[T any, R any](ctx context.Context, items []T, limit int, fn func(context.Context, int, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Result pairs one output of Settle with its own error.
type Result[R any] struct {
	Value R
	Err   error
}

// Settle is Map without fail-fast: every item runs to completion and
// each result carries its own error.
func Settle[T any, R any](ctx context.Context, items []T, limit int, fn func(context.Context, int, T) (R, error)) []Result[R] {
	out := make([]Result[R], len(items))
	g := errgroup.Group{}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(ctx, i, item)
			out[i] = Result[R]{Value: r, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return out
}
