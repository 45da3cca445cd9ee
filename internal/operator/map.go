package operator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// MapFunc transforms one element. Returning keep=false drops the element.
type MapFunc[In, Out any] func(ctx context.Context, v In) (out Out, keep bool, err error)

// Map applies fn to every element of upstream, one at a time, in order.
func Map[In, Out any](upstream Operator[In], fn MapFunc[In, Out]) Operator[Out] {
	return Func[Out](func(ctx context.Context, out chan<- Out) error {
		in, wait := Start(ctx, upstream, 0)
		for v := range in {
			r, keep, err := fn(ctx, v)
			if err != nil {
				_ = wait()
				return err
			}
			if !keep {
				continue
			}
			if err := Send(ctx, out, r); err != nil {
				_ = wait()
				return err
			}
		}
		return wait()
	})
}

// OrderedMap applies fn to up to parallelism elements concurrently while emitting
// results in upstream order.
func OrderedMap[In, Out any](upstream Operator[In], parallelism int, fn MapFunc[In, Out]) Operator[Out] {
	if parallelism <= 1 {
		return Map(upstream, fn)
	}
	return Func[Out](func(ctx context.Context, out chan<- Out) error {
		type result struct {
			v    Out
			keep bool
		}

		g, gctx := errgroup.WithContext(ctx)
		sem := semaphore.NewWeighted(int64(parallelism))
		pending := make(chan chan result, parallelism)

		g.Go(func() error {
			defer close(pending)
			in, wait := Start(gctx, upstream, 0)
			for v := range in {
				if err := sem.Acquire(gctx, 1); err != nil {
					_ = wait()
					return err
				}
				slot := make(chan result, 1)
				select {
				case pending <- slot:
				case <-gctx.Done():
					sem.Release(1)
					_ = wait()
					return gctx.Err()
				}
				g.Go(func() error {
					defer sem.Release(1)
					r, keep, err := fn(gctx, v)
					if err != nil {
						return err
					}
					slot <- result{v: r, keep: keep}
					return nil
				})
			}
			if err := wait(); err != nil {
				return fmt.Errorf("upstream: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			for slot := range pending {
				var r result
				select {
				case r = <-slot:
				case <-gctx.Done():
					return gctx.Err()
				}
				if !r.keep {
					continue
				}
				if err := Send(gctx, out, r.v); err != nil {
					return err
				}
			}
			return nil
		})

		return g.Wait()
	})
}
