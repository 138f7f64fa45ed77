// Package work bounds the number of concurrently executing CPU-bound
// transcription calls across all connections.
package work

import "context"

// Pool is a semaphore-bounded executor. Submitters block while the pool
// is saturated; the caller's goroutine suspends, it never runs the work
// itself.
type Pool struct {
	sem chan struct{}
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Do runs fn on a pool slot and waits for it to finish. If ctx ends
// while waiting for a slot, fn never starts. If ctx ends while fn is
// running, Do returns early and the call runs to completion with its
// result discarded; there is no mid-call cancellation.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		defer func() {
			<-p.sem
			close(done)
		}()
		fn()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size reports the pool's concurrency bound.
func (p *Pool) Size() int {
	return cap(p.sem)
}
