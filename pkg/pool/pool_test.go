package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedWork(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxWorkers: 4})
	var count int64
	var wg sync.WaitGroup
	wg.Add(10)

	for i := 0; i < 10; i++ {
		if err := p.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if got := atomic.LoadInt64(&count); got != 10 {
		t.Fatalf("expected 10 executions, got %d", got)
	}
}

func TestPoolCapsConcurrency(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxWorkers: 2})
	var inFlight int64
	var maxSeen int64
	var wg sync.WaitGroup
	wg.Add(6)

	for i := 0; i < 6; i++ {
		_ = p.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt64(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		})
	}
	wg.Wait()

	if maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent workers, saw %d", maxSeen)
	}
}

func TestPoolSubmitRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxWorkers: 1})
	block := make(chan struct{})
	_ = p.Submit(context.Background(), func(context.Context) {
		<-block
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Submit(ctx, func(context.Context) {})
	if err == nil {
		t.Fatal("expected Submit to respect context cancellation when the pool is full")
	}
	close(block)
}

func TestPoolWorkerPanicIsRecovered(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxWorkers: 1})
	done := make(chan struct{})

	if err := p.Submit(context.Background(), func(context.Context) {
		defer close(done)
		panic("boom")
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-done

	if err := p.Submit(context.Background(), func(context.Context) {}); err != nil {
		t.Fatalf("expected pool to remain usable after a panic: %v", err)
	}
}
