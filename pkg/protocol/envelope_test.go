package protocol

import (
	"strings"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	sid := "s1"
	msg := OutboundMessage{
		Event:     OutboundSession,
		SessionID: &sid,
		Data:      SessionMessage{Type: SessionEnd},
	}

	var c Codec
	encoded, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if !strings.HasSuffix(string(encoded), "\n") {
		t.Fatalf("expected trailing newline, got %q", encoded)
	}

	env, skip, err := c.Decode([]byte(`{"session_id":"s1","event":"request","data":{"type":"tool","action":"invoke_tool"}}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if skip {
		t.Fatal("did not expect skip for a valid record")
	}
	if env.SessionID != "s1" || env.Event != EventRequest {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestCodecDecodeEmptyLineIsSkipped(t *testing.T) {
	t.Parallel()

	var c Codec
	_, skip, err := c.Decode([]byte("   "))
	if err != nil {
		t.Fatalf("unexpected error for blank line: %v", err)
	}
	if !skip {
		t.Fatal("expected blank line to be skipped")
	}
}

func TestCodecDecodeMalformedRecordReportsRawLine(t *testing.T) {
	t.Parallel()

	var c Codec
	raw := []byte(`{"session_id": not-json}`)
	_, skip, err := c.Decode(raw)
	if skip {
		t.Fatal("malformed record should not be silently skipped")
	}
	var decErr *DecodeError
	if err == nil {
		t.Fatal("expected a decode error")
	}
	if de, ok := err.(*DecodeError); !ok {
		t.Fatalf("expected *DecodeError, got %T", err)
	} else {
		decErr = de
	}
	if string(decErr.Raw) != string(raw) {
		t.Fatalf("expected raw line to be preserved, got %q", decErr.Raw)
	}
}

func TestEnvelopeDataAs(t *testing.T) {
	t.Parallel()

	var c Codec
	env, _, err := c.Decode([]byte(`{"session_id":"s1","event":"request","data":{"type":"tool","action":"invoke_tool"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var req RequestEnvelopeData
	if err := env.DataAs(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Type != "tool" || req.Action != "invoke_tool" {
		t.Fatalf("unexpected request data: %+v", req)
	}
}
