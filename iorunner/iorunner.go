// Package iorunner bridges external async I/O (network calls, disk reads,
// anything that blocks on something other than CPU) into the compute
// pool's completion-draining model, so a system can fire off an I/O call
// without stalling a worker goroutine for its whole duration.
package iorunner

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	ecs "github.com/redlilium/ecs"
	"github.com/redlilium/ecs/compute"
)

// Future is anything that produces a T when awaited, the same shape the
// standard library's and most async libraries' futures take in Go: a
// blocking call gated by a context for cancellation.
type Future[T any] func(ctx context.Context) (T, error)

// IoHandle is the result of bridging a Future into the compute pool: it
// carries both the value and any error the future produced, since I/O
// fails in ways CPU-bound compute work generally doesn't.
type IoHandle[T any] struct {
	handle compute.TaskHandle[ioResult[T]]
}

type ioResult[T any] struct {
	value T
	err   error
}

// Run submits future to pool at High priority (I/O waits are usually cheap
// on CPU but latency-sensitive, so they should drain ahead of Low-priority
// background compute) and returns a handle whose Recv/TryRecv surface both
// the value and any error.
func Run[T any](ctx context.Context, pool *compute.Pool, future Future[T]) IoHandle[T] {
	h := compute.Spawn(pool, ecs.PriorityHigh, func() ioResult[T] {
		v, err := future(ctx)
		if err != nil {
			return ioResult[T]{err: errors.Wrap(err, "iorunner: future failed")}
		}
		return ioResult[T]{value: v}
	})
	return IoHandle[T]{handle: h}
}

// Recv blocks until the future completes and returns its value and error.
func (h IoHandle[T]) Recv() (T, error) {
	r := h.handle.Recv()
	return r.value, r.err
}

// TryRecv returns (value, err, true) if the future has completed, or
// (zero, nil, false) if it is still pending.
func (h IoHandle[T]) TryRecv() (T, error, bool) {
	r, ok := h.handle.TryRecv()
	if !ok {
		var zero T
		return zero, nil, false
	}
	return r.value, r.err, true
}

// OnComplete registers fn to run at the next compute pool Tick, receiving
// the future's value and error.
func (h IoHandle[T]) OnComplete(fn func(T, error)) {
	h.handle.OnComplete(func(r ioResult[T]) { fn(r.value, r.err) })
}

// Cancel marks the underlying task cancelled; if it has not started, the
// worker skips running it. Already-running futures are not interrupted —
// callers that need true cancellation must make their ctx respect it.
func (h IoHandle[T]) Cancel() { h.handle.Cancel() }

// AwaitAll blocks until every handle completes, returning each future's
// value in handle order and the first error encountered (if any). Each
// Recv runs on its own goroutine via errgroup, so the returned error is the
// first one to occur in time rather than in handle order; it is still
// returned only after every handle has completed.
func AwaitAll[T any](handles ...IoHandle[T]) ([]T, error) {
	var g errgroup.Group
	out := make([]T, len(handles))
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			v, err := h.Recv()
			out[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
