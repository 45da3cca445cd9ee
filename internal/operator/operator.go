// Package operator is the dataflow runtime shared by ingestion pipelines and compiled queries.
//
// An Operator emits a lazy sequence of elements into a channel. Each call to Emit
// produces the sequence anew; closing the channel is the caller's responsibility.
// Cancelling the context passed to Emit stops the operator and, transitively, every
// upstream operator it started.
package operator

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Operator produces a sequence of T.
type Operator[T any] interface {
	Emit(ctx context.Context, out chan<- T) error
}

// Func adapts a function to Operator.
type Func[T any] func(ctx context.Context, out chan<- T) error

// Emit calls f.
func (f Func[T]) Emit(ctx context.Context, out chan<- T) error { return f(ctx, out) }

// Send delivers v unless ctx is done first.
func Send[T any](ctx context.Context, out chan<- T, v T) error {
	select {
	case out <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs op on its own goroutine and returns its output channel, closed when op returns.
// The returned wait function stops op, drains the channel and reports op's error.
// A cancellation that wait itself caused is not reported, so consumers may stop reading early.
// Wait must be called exactly once the consumer is done with the channel; it is idempotent.
func Start[T any](ctx context.Context, op Operator[T], buffer int) (<-chan T, func() error) {
	opCtx, cancel := context.WithCancel(ctx)
	out := make(chan T, buffer)
	done := make(chan struct{})

	var emitErr error
	go func() {
		defer close(done)
		defer close(out)
		emitErr = op.Emit(opCtx, out)
	}()

	var (
		once   sync.Once
		result error
	)
	wait := func() error {
		once.Do(func() {
			cancel()
			for range out { //nolint:revive // drain so the producer can exit
			}
			<-done
			result = emitErr
			if errors.Is(result, context.Canceled) && ctx.Err() == nil {
				result = nil
			}
		})
		return result
	}
	return out, wait
}

// Collect runs op to completion and returns everything it emitted.
func Collect[T any](ctx context.Context, op Operator[T]) ([]T, error) {
	in, wait := Start(ctx, op, 0)
	var items []T
	for v := range in {
		items = append(items, v)
	}
	if err := wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// CollectAll runs every op concurrently and returns their outputs in op order.
// The first failure cancels the remaining operators.
func CollectAll[T any](ctx context.Context, ops []Operator[T]) ([][]T, error) {
	out := make([][]T, len(ops))
	g, gctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		g.Go(func() error {
			items, err := Collect(gctx, op)
			if err != nil {
				return err
			}
			out[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Slice emits items in order.
func Slice[T any](items ...T) Operator[T] {
	return Func[T](func(ctx context.Context, out chan<- T) error {
		for _, v := range items {
			if err := Send(ctx, out, v); err != nil {
				return err
			}
		}
		return nil
	})
}
