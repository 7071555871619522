// Package reader implements the request reader and its filtered fan-out
// (component C4): a single goroutine decodes inbound records off a
// transport and delivers each one to every predicate-matching
// subscriber. It is how many in-flight backwards invocations share one
// inbound stream without stepping on each other.
package reader

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

// Predicate reports whether env should be delivered to a subscriber.
type Predicate func(env *protocol.Envelope) bool

// ParseErrorHandler is invoked with the raw offending line and the
// decode error whenever the reader fails to parse an inbound record.
// It never aborts the read loop.
type ParseErrorHandler func(raw string, err error)

// Subscription is one entry in the reader's subscriber list.
type Subscription struct {
	predicate Predicate
	ch        chan *protocol.Envelope
	closeOnce sync.Once
	parent    *Reader
}

// Read blocks until a matching envelope arrives or the Subscription is
// closed, in which case it returns (nil, false).
func (s *Subscription) Read() (*protocol.Envelope, bool) {
	env, ok := <-s.ch
	if !ok || env == nil {
		return nil, false
	}
	return env, true
}

// ReadTimeout blocks until a matching envelope arrives, the timeout
// channel fires, or the Subscription closes. A fired timeout yields
// (nil, false) without closing the Subscription — callers loop on it.
func (s *Subscription) ReadTimeout(timeout <-chan time.Time) (*protocol.Envelope, bool) {
	select {
	case env, ok := <-s.ch:
		if !ok || env == nil {
			return nil, false
		}
		return env, true
	case <-timeout:
		return nil, false
	}
}

// Close deregisters the Subscription and releases its channel. Safe to
// call more than once and safe to defer unconditionally.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.parent.unsubscribe(s)
		close(s.ch)
	})
}

// Reader owns the single decoder goroutine and the subscriber list it
// fans decoded envelopes out to. Construct one per process and share it
// across sessions; it never becomes a package-level global.
type Reader struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}

	onParseError ParseErrorHandler
	logger       *slog.Logger

	done chan struct{}
}

// New creates a Reader. onParseError, if non-nil, is called for every
// line that fails to decode; it is expected to emit an error event on
// the writer.
func New(logger *slog.Logger, onParseError ParseErrorHandler) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		subscribers:  make(map[*Subscription]struct{}),
		onParseError: onParseError,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Subscribe registers a predicate-filtered subscriber with the given
// channel buffer depth and returns it. Callers must Close it when done.
func (r *Reader) Subscribe(predicate Predicate, buffer int) *Subscription {
	sub := &Subscription{
		predicate: predicate,
		ch:        make(chan *protocol.Envelope, buffer),
		parent:    r,
	}
	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	r.mu.Unlock()
	return sub
}

func (r *Reader) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	delete(r.subscribers, sub)
	r.mu.Unlock()
}

// Run decodes newline-delimited records from src until it hits EOF or
// src returns a non-EOF error, fanning each decoded envelope out to
// every matching subscriber. It returns when the stream ends; callers
// run it in its own goroutine.
func (r *Reader) Run(src io.Reader) error {
	scanner := protocol.LineScanner(src)
	codec := &protocol.Codec{}

	for scanner.Scan() {
		env, skip, err := codec.Decode(scanner.Bytes())
		if skip {
			continue
		}
		if err != nil {
			r.reportParseError(scanner.Text(), err)
			continue
		}
		r.fanOut(&env)
	}

	close(r.done)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reader: scan failed: %w", err)
	}
	return nil
}

// Done returns a channel closed once Run has returned.
func (r *Reader) Done() <-chan struct{} { return r.done }

func (r *Reader) reportParseError(raw string, err error) {
	if r.onParseError != nil {
		r.onParseError(raw, err)
		return
	}
	r.logger.Error("reader: failed to decode record", "error", err)
}

// fanOut snapshots the subscriber list under the lock, releases it,
// then evaluates predicates and delivers matches. Predicate evaluation
// and channel sends never hold the subscriber-list lock, so Subscribe
// and Close never wait on delivery; a full subscriber channel does
// stall the decoder loop until that subscriber reads or closes.
func (r *Reader) fanOut(env *protocol.Envelope) {
	r.mu.RLock()
	snapshot := make([]*Subscription, 0, len(r.subscribers))
	for sub := range r.subscribers {
		snapshot = append(snapshot, sub)
	}
	r.mu.RUnlock()

	for _, sub := range snapshot {
		if r.matches(sub, env) {
			r.deliver(sub, env)
		}
	}
}

// deliver sends env to sub. A subscriber closed after the snapshot was
// taken has a closed channel; the resulting send panic is recovered and
// the envelope is dropped for that subscriber.
func (r *Reader) deliver(sub *Subscription, env *protocol.Envelope) {
	defer func() { _ = recover() }()
	sub.ch <- env
}

// matches evaluates a subscriber's predicate, recovering and logging a
// panic rather than letting it escape into the decoder loop.
func (r *Reader) matches(sub *Subscription, env *protocol.Envelope) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("reader: subscriber predicate panicked", "panic", rec)
			matched = false
		}
	}()
	return sub.predicate(env)
}
