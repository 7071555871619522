package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pluginrt/plugin-go-sdk/pkg/internal/retry"
)

// TCPState is the connection state of a TCP transport, per the
// INIT -> HANDSHAKING -> CONNECTED -> DEAD -> (backoff) -> INIT cycle.
type TCPState int

const (
	StateInit TCPState = iota
	StateHandshaking
	StateConnected
	StateDead
)

func (s TCPState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// handshakeEnvelope is the first record sent on a new TCP connection.
type handshakeEnvelope struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// TCPConfig configures the remote install-method transport.
type TCPConfig struct {
	Host string
	Port int
	Key  string

	// MaxReconnectAttempts bounds the initial-connect retry loop
	// (default 3).
	MaxReconnectAttempts int
	// Backoff is the fixed per-attempt delay step (default 5s);
	// exponential-with-jitter growth is capped at this ceiling.
	Backoff time.Duration

	Logger *slog.Logger
}

func (c *TCPConfig) setDefaults() {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.Backoff == 0 {
		c.Backoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// TCP is the remote install-method transport: a persistent connection
// to the daemon with a handshake on connect and an automatic
// reconnect-with-backoff loop on read/write failure.
type TCP struct {
	cfg TCPConfig

	mu    sync.Mutex
	conn  net.Conn
	state TCPState

	sigStop chan struct{}
}

// NewTCP dials (host, port), performs the handshake, and installs the
// dedicated SIGINT-exit goroutine described in the design notes: a
// cooperative context-cancellation unwind is not trusted to run in
// time, so SIGINT calls os.Exit directly from its own goroutine.
func NewTCP(cfg TCPConfig) (*TCP, error) {
	cfg.setDefaults()
	t := &TCP{cfg: cfg, state: StateInit, sigStop: make(chan struct{})}

	if err := t.connect(); err != nil {
		t.cfg.Logger.Warn("tcp transport: initial connect failed, retrying", "error", err)
		if rerr := t.reconnect(); rerr != nil {
			return nil, rerr
		}
	}

	t.installSignalExit()
	return t, nil
}

func (t *TCP) installSignalExit() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigc:
			t.cfg.Logger.Info("tcp transport: received interrupt, exiting")
			_ = t.Close()
			os.Exit(0)
		case <-t.sigStop:
			signal.Stop(sigc)
		}
	}()
}

// connect dials the daemon, transitions INIT -> HANDSHAKING -> CONNECTED,
// and writes the handshake envelope.
func (t *TCP) connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateHandshaking
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.state = StateDead
		return fmt.Errorf("tcp transport: dial %s: %w", addr, err)
	}

	hs := handshakeEnvelope{Type: "handshake", Data: map[string]interface{}{"key": t.cfg.Key}}
	line, err := json.Marshal(hs)
	if err != nil {
		conn.Close()
		t.state = StateDead
		return fmt.Errorf("tcp transport: encode handshake: %w", err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		conn.Close()
		t.state = StateDead
		return fmt.Errorf("tcp transport: write handshake: %w", err)
	}

	t.conn = conn
	t.state = StateConnected
	return nil
}

// reconnect retries connect up to cfg.MaxReconnectAttempts times,
// sleeping an exponentially growing, jittered backoff capped at
// cfg.Backoff between attempts. Built on pkg/internal/retry.Do rather
// than a hand-rolled loop.
func (t *TCP) reconnect() error {
	attempt := 0
	retryCfg := retry.Config{
		MaxRetries:   t.cfg.MaxReconnectAttempts,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     t.cfg.Backoff,
		Multiplier:   2.0,
		Jitter:       true,
	}

	err := retry.Do(context.Background(), retryCfg, func(context.Context) error {
		attempt++
		if err := t.connect(); err != nil {
			t.cfg.Logger.Warn("tcp transport: reconnect attempt failed, backing off", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tcp transport: exhausted %d reconnect attempts: %w", t.cfg.MaxReconnectAttempts, err)
	}
	return nil
}

// Reader returns a reader that transparently reconnects on EOF or a
// read error, marking the connection DEAD and retrying per the
// documented backoff before resuming the scan.
func (t *TCP) Reader() io.Reader { return &reconnectingReader{t: t} }

// Writer returns the raw connection as the write sink. Mid-session
// write failures are surfaced to the caller (the writer package) which
// does not itself retry; reconnection happens on the read side, which
// notices the dead connection on its next Read call.
func (t *TCP) Writer() io.Writer { return &reconnectingWriter{t: t} }

func (t *TCP) Close() error {
	close(t.sigStop)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *TCP) currentConn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *TCP) markDead() {
	t.mu.Lock()
	t.state = StateDead
	t.mu.Unlock()
}

type reconnectingReader struct{ t *TCP }

func (r *reconnectingReader) Read(p []byte) (int, error) {
	conn := r.t.currentConn()
	n, err := conn.Read(p)
	if err != nil {
		r.t.markDead()
		if rerr := r.t.reconnect(); rerr != nil {
			return n, fmt.Errorf("tcp transport: read failed and reconnect failed: %w", rerr)
		}
		return 0, nil
	}
	return n, nil
}

type reconnectingWriter struct{ t *TCP }

func (w *reconnectingWriter) Write(p []byte) (int, error) {
	conn := w.t.currentConn()
	n, err := conn.Write(p)
	if err != nil {
		w.t.markDead()
	}
	return n, err
}
