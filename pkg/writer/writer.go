// Package writer implements the response writer (component C3): the
// four outbound primitives every session and transport shares, each
// serialized to one JSON line followed by a blank-line sentinel.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

// Writer serializes outbound records onto a shared io.Writer. Safe for
// concurrent use across worker goroutines; every write is serialized
// behind a single mutex so two goroutines never interleave partial
// frames on a shared transport (stdio, TCP).
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// New wraps out with the four outbound primitives.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Log emits a log-level message with no session scope.
func (w *Writer) Log(message string) error {
	return w.writeRecord(protocol.OutboundMessage{
		Event: protocol.OutboundLog,
		Data:  map[string]interface{}{"message": message},
	})
}

// Error emits an error event, optionally scoped to a session.
func (w *Writer) Error(sessionID string, message string) error {
	msg := protocol.OutboundMessage{
		Event: protocol.OutboundError,
		Data:  map[string]interface{}{"message": message},
	}
	if sessionID != "" {
		msg.SessionID = &sessionID
	}
	return w.writeRecord(msg)
}

// Heartbeat emits the keep-alive record.
func (w *Writer) Heartbeat() error {
	return w.writeRecord(protocol.OutboundMessage{Event: protocol.OutboundHeartbeat})
}

// SessionMessage wraps inner as the data payload of a session-scoped
// record — the primitive every stream/invoke/end/error reply to a
// request envelope funnels through.
func (w *Writer) SessionMessage(sessionID string, inner interface{}) error {
	return w.writeRecord(protocol.OutboundMessage{
		Event:     protocol.OutboundSession,
		SessionID: &sessionID,
		Data:      inner,
	})
}

// writeRecord marshals msg, writes it as one line, then writes the
// blank-line sentinel the stdio/TCP transports rely on to delimit
// records for the host's own line-buffered reader.
func (w *Writer) writeRecord(msg protocol.OutboundMessage) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("writer: encode record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(line); err != nil {
		return fmt.Errorf("writer: write record: %w", err)
	}
	if _, err := w.out.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("writer: write sentinel: %w", err)
	}
	if f, ok := w.out.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("writer: flush: %w", err)
		}
	}
	return nil
}
