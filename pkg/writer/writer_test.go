package writer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

func records(t *testing.T, buf *bytes.Buffer) []protocol.OutboundMessage {
	t.Helper()
	var out []protocol.OutboundMessage
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var msg protocol.OutboundMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("failed to decode record %q: %v", line, err)
		}
		out = append(out, msg)
	}
	return out
}

func TestWriterLogAndHeartbeat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)

	if err := w.Log("hello"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := w.Heartbeat(); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	got := records(t, &buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Event != protocol.OutboundLog {
		t.Fatalf("expected log event, got %v", got[0].Event)
	}
	if got[1].Event != protocol.OutboundHeartbeat {
		t.Fatalf("expected heartbeat event, got %v", got[1].Event)
	}
}

func TestWriterErrorScopedToSession(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)

	if err := w.Error("s1", "boom"); err != nil {
		t.Fatalf("Error: %v", err)
	}

	got := records(t, &buf)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].SessionID == nil || *got[0].SessionID != "s1" {
		t.Fatalf("expected session_id s1, got %v", got[0].SessionID)
	}
}

func TestWriterSessionMessageFrameHasBlankLineSentinel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)

	if err := w.SessionMessage("s1", map[string]string{"event": "stream"}); err != nil {
		t.Fatalf("SessionMessage: %v", err)
	}

	if !strings.HasSuffix(buf.String(), "\n\n") {
		t.Fatalf("expected trailing blank-line sentinel, got %q", buf.String())
	}
}

func TestWriterConcurrentWritesDoNotInterleave(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := New(&buf)

	const n = 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_ = w.Log("message")
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}

	got := records(t, &buf)
	if len(got) != n {
		t.Fatalf("expected %d well-formed records, got %d", n, len(got))
	}
}
