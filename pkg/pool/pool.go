// Package pool implements the bounded worker pool (component C9):
// fire-and-forget handler submission gated by a fixed-size semaphore
// channel, with an optional rate.Limiter shaping admission.
package pool

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// Pool runs submitted work on a bounded number of concurrent
// goroutines. Grounded on the semaphore-channel fan-out idiom the
// teacher uses for its own parallel generation helper, generalized
// from "parallel video generation calls" to "concurrent request
// handlers."
type Pool struct {
	sem     chan struct{}
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Config configures a Pool.
type Config struct {
	// MaxWorkers bounds concurrent in-flight submissions (default 1000).
	MaxWorkers int
	// RequestsPerSecond, if > 0, additionally shapes admission with a
	// token-bucket limiter; 0 means unlimited.
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// New creates a Pool per cfg.
func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Pool{
		sem:    make(chan struct{}, cfg.MaxWorkers),
		logger: cfg.Logger,
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxWorkers)
	}
	return p
}

// Submit blocks until admission (rate limiter, then semaphore slot),
// then runs fn on its own goroutine. It returns as soon as that
// goroutine is launched, without waiting for fn to start or finish —
// submissions are fire-and-forget.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	go func() {
		defer func() { <-p.sem }()
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("pool: worker panicked", "panic", rec)
			}
		}()
		fn(ctx)
	}()
	return nil
}

// InFlight reports the number of slots currently occupied.
func (p *Pool) InFlight() int { return len(p.sem) }

// Capacity reports the configured maximum concurrency.
func (p *Pool) Capacity() int { return cap(p.sem) }
