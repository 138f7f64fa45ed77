package work

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsWork(t *testing.T) {
	p := NewPool(2)
	ran := false
	if err := p.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected work to run")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() {
				n := atomic.AddInt64(&active, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt64(&active, -1)
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > 2 {
		t.Fatalf("expected at most 2 concurrent executions, observed %d", got)
	}
}

func TestPoolRespectsContextWhileWaiting(t *testing.T) {
	p := NewPool(1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := p.Do(ctx, func() { ran = true })
	if err == nil {
		t.Fatal("expected context error while pool saturated")
	}
	if ran {
		t.Fatal("work must not start after context cancellation")
	}
	close(release)
}

func TestPoolMinimumSize(t *testing.T) {
	if NewPool(0).Size() != 1 {
		t.Fatal("expected pool size floor of 1")
	}
}
