// Package server implements the IO server (component C10): it wires
// the reader's request-event subscription into the worker pool, builds
// a Session per dispatched request, runs the dispatcher's handler
// wrapper, and owns the two always-on background loops (heartbeat,
// orphan-check) that keep the daemon informed of this process's
// liveness.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/dispatcher"
	"github.com/pluginrt/plugin-go-sdk/pkg/executor"
	"github.com/pluginrt/plugin-go-sdk/pkg/invoke"
	"github.com/pluginrt/plugin-go-sdk/pkg/pool"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
	"github.com/pluginrt/plugin-go-sdk/pkg/reader"
	"github.com/pluginrt/plugin-go-sdk/pkg/session"
	"github.com/pluginrt/plugin-go-sdk/pkg/telemetry"
	"github.com/pluginrt/plugin-go-sdk/pkg/transport"
	"github.com/pluginrt/plugin-go-sdk/pkg/writer"
)

// Config configures a Server.
type Config struct {
	Dispatcher *dispatcher.Dispatcher

	// Mode selects which transport strategy a dispatched Session's
	// backwards-invocation sub-APIs use.
	Mode session.InstallMode
	// DaemonURL is required when Mode == session.ModeServerless.
	DaemonURL string

	Pool pool.Config

	// HeartbeatInterval is the cadence of the keep-alive loop (§4.10
	// step 3). Zero disables the heartbeat loop entirely; a non-zero
	// value below the default still runs, per the open question in §9
	// ("heartbeat interleaves unconditionally, never paused").
	HeartbeatInterval time.Duration

	// OrphanCheck, when true, starts the parent-pid poll described in
	// §4.10 step 4. Only meaningful for the stdio transport — the IO
	// server does not itself check which transport is in use, so the
	// caller (cmd/pluginhost) only sets this for stdio.
	OrphanCheck bool
	// OrphanPollInterval is the poll cadence (default 500ms).
	OrphanPollInterval time.Duration

	Telemetry *telemetry.Settings
	Logger    *slog.Logger
}

func (c *Config) setDefaults() {
	if c.OrphanPollInterval == 0 {
		c.OrphanPollInterval = 500 * time.Millisecond
	}
	if c.Telemetry == nil {
		c.Telemetry = telemetry.DefaultSettings()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server composes the reader, writer, pool, and dispatcher and runs the
// background loops described in §4.10. The stdio and TCP modes build one
// Server per process; the serverless mode builds one per request
// transport. A Server is not reused across transports.
type Server struct {
	cfg    Config
	tracer trace.Tracer

	rd *reader.Reader
	wr *writer.Writer
	pl *pool.Pool
}

// New builds a Server. The reader is constructed here (not passed in)
// because its onParseError callback needs the writer that is also built
// here — the two are inseparable for the lifetime of one transport.
func New(cfg Config, tr transport.Transport) *Server {
	cfg.setDefaults()

	wr := writer.New(tr.Writer())
	s := &Server{
		cfg:    cfg,
		tracer: telemetry.GetTracer(cfg.Telemetry),
		wr:     wr,
		pl:     pool.New(cfg.Pool),
	}
	s.rd = reader.New(cfg.Logger, s.reportParseError)
	return s
}

// reportParseError implements reader.ParseErrorHandler: it surfaces a
// decode failure as a writer error event scoped to the offending
// session when the malformed record at least parses far enough to
// recover a session_id, and unscoped otherwise (§4.4 invariant 5).
func (s *Server) reportParseError(raw string, err error) {
	sessionID := ""
	var probe struct {
		SessionID string `json:"session_id"`
	}
	if jerr := json.Unmarshal([]byte(raw), &probe); jerr == nil {
		sessionID = probe.SessionID
	}
	if werr := s.wr.Error(sessionID, err.Error()); werr != nil {
		s.cfg.Logger.Error("server: failed to report parse error", "error", werr)
	}
}

// Run starts the reader loop, the request-dispatch subscription, the
// heartbeat loop, and (if configured) the orphan check, then blocks
// until src's stream ends or ctx is cancelled. It is the Go analogue of
// §4.10's four startup steps.
func (s *Server) Run(ctx context.Context, tr transport.Transport) error {
	readerDone := make(chan error, 1)
	go func() { readerDone <- s.rd.Run(tr.Reader()) }()

	sub := s.rd.Subscribe(func(env *protocol.Envelope) bool {
		return env.Event == protocol.EventRequest
	}, 64)
	defer sub.Close()

	go s.dispatchLoop(ctx, sub)

	if s.cfg.HeartbeatInterval > 0 {
		go s.heartbeatLoop(ctx)
	}
	if s.cfg.OrphanCheck {
		go s.orphanCheckLoop(ctx)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-readerDone:
		return err
	}
}

// dispatchLoop is the server's half of §4.10 step 2: for every
// `request` envelope the reader fans out, submit a closure to the
// worker pool that builds a Session and runs the handler wrapper.
func (s *Server) dispatchLoop(ctx context.Context, sub *reader.Subscription) {
	for {
		env, ok := sub.Read()
		if !ok {
			return
		}
		envelope := env
		if err := s.pl.Submit(ctx, func(workerCtx context.Context) {
			s.handleRequest(workerCtx, envelope)
		}); err != nil {
			s.cfg.Logger.Error("server: failed to submit request", "session_id", envelope.SessionID, "error", err)
			return
		}
	}
}

func (s *Server) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.wr.Heartbeat(); err != nil {
				s.cfg.Logger.Error("server: failed to write heartbeat", "error", err)
			}
		}
	}
}

// orphanCheckLoop implements §4.10 step 4: every OrphanPollInterval,
// poll the parent pid; once it becomes 1 (reparented to init because
// the daemon died) exit the process immediately with a non-zero code.
func (s *Server) orphanCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.OrphanPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if os.Getppid() == 1 {
				s.cfg.Logger.Warn("server: orphaned (parent reparented to init), exiting")
				os.Exit(1)
			}
		}
	}
}

// newSession builds a Session for env per the configured install mode.
func (s *Server) newSession(env *protocol.Envelope) *session.Session {
	switch s.cfg.Mode {
	case session.ModeServerless:
		return session.NewServerless(env.SessionID, invoke.NewHTTPClient(s.cfg.DaemonURL))
	default:
		duplex := invoke.NewFullDuplexClient(env.SessionID, s.rd, s.wr)
		return session.New(env.SessionID, duplex)
	}
}

// handleRequest is §4.10's handler-execution wrapper: it builds a
// Session, wraps the dispatcher call in a telemetry span, normalizes
// whatever the dispatcher's handler returned into stream/error/end
// session events, and guarantees exactly one terminal event is written
// (testable property 4).
func (s *Server) handleRequest(ctx context.Context, env *protocol.Envelope) {
	sess := s.newSession(env)

	var meta protocol.RequestEnvelopeData
	_ = env.DataAs(&meta)

	ctx, span := s.tracer.Start(ctx, "dispatch."+meta.Type+"."+meta.Action)
	defer span.End()
	span.SetAttributes(telemetry.GetBaseAttributes(meta.Type, meta.Action, env.SessionID, s.cfg.Telemetry)...)

	defer s.recoverPanic(env.SessionID)

	ctx = session.WithContext(ctx, sess)
	result, err := s.cfg.Dispatcher.Dispatch(ctx, env)
	if err != nil {
		telemetry.RecordErrorOnSpan(span, err)
		s.emitError(env.SessionID, err)
		s.emitEnd(env.SessionID)
		return
	}

	if stream, ok := result.(<-chan executor.Result); ok {
		s.drainStream(ctx, env.SessionID, stream, span)
		return
	}

	if result != nil {
		if werr := s.wr.SessionMessage(env.SessionID, protocol.SessionMessage{
			Type: protocol.SessionStream,
			Data: map[string]interface{}{"result": result},
		}); werr != nil {
			s.cfg.Logger.Error("server: failed to write stream event", "error", werr)
		}
	}
	s.emitEnd(env.SessionID)
}

// drainStream ranges over a streaming handler's result channel (the
// executor's channel-of-Result shape), emitting one `stream` event per
// item and a single terminal `error`-then-`end` or plain `end` once the
// channel closes, per §4.10's "normal channel-based stream" branch.
func (s *Server) drainStream(ctx context.Context, sessionID string, stream <-chan executor.Result, span trace.Span) {
	for {
		select {
		case <-ctx.Done():
			s.emitError(sessionID, ctx.Err())
			s.emitEnd(sessionID)
			return
		case item, ok := <-stream:
			if !ok {
				s.emitEnd(sessionID)
				return
			}
			if item.Err != nil {
				telemetry.RecordErrorOnSpan(span, item.Err)
				s.emitError(sessionID, item.Err)
				s.emitEnd(sessionID)
				return
			}
			if werr := s.wr.SessionMessage(sessionID, protocol.SessionMessage{
				Type: protocol.SessionStream,
				Data: item.Value,
			}); werr != nil {
				s.cfg.Logger.Error("server: failed to write stream event", "error", werr)
			}
		}
	}
}

// recoverPanic turns a handler panic into the same {error_type,
// message, args} shaped error event a returned error would produce,
// then writes the terminal end event — a panicking handler must never
// take down the reader, writer, pool, or heartbeat (§7 propagation
// policy).
func (s *Server) recoverPanic(sessionID string) {
	if rec := recover(); rec != nil {
		err := fmt.Errorf("handler panicked: %v", rec)
		s.emitError(sessionID, err)
		s.emitEnd(sessionID)
	}
}

// emitError writes the {type: error, data: {error_type, message,
// args}} session event §4.10 specifies for both dispatch and handler
// failures.
func (s *Server) emitError(sessionID string, err error) {
	var herr *contract.HandlerError
	if !errors.As(err, &herr) {
		herr = contract.NewHandlerError(errorType(err), err)
	}

	payload := protocol.ErrorPayload{
		ErrorType: herr.ErrorType,
		Message:   herr.Message,
		Args:      herr.Args(),
	}
	if werr := s.wr.SessionMessage(sessionID, protocol.SessionMessage{Type: protocol.SessionError, Data: payload}); werr != nil {
		s.cfg.Logger.Error("server: failed to write error event", "error", werr)
	}
}

func (s *Server) emitEnd(sessionID string) {
	if werr := s.wr.SessionMessage(sessionID, protocol.SessionMessage{Type: protocol.SessionEnd}); werr != nil {
		s.cfg.Logger.Error("server: failed to write end event", "error", werr)
	}
}

// errorType classifies err into the §7 taxonomy's error_type string.
func errorType(err error) string {
	switch {
	case errors.Is(err, contract.ErrUnroutable):
		return "unroutable"
	case contract.IsValidationError(err):
		return "validation"
	case errors.As(err, new(*contract.BackwardsInvocationError)):
		return "backwards_invocation"
	default:
		return "handler"
	}
}
