package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
	"github.com/pluginrt/plugin-go-sdk/pkg/reader"
	"github.com/pluginrt/plugin-go-sdk/pkg/writer"
)

// extractRequestID decodes the one record the test writer captured and
// pulls the backwards_request_id the client generated for it.
func extractRequestID(t *testing.T, buf *bytes.Buffer) string {
	t.Helper()
	line := strings.SplitN(buf.String(), "\n", 2)[0]
	var msg protocol.OutboundMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		t.Fatalf("decode outbound message: %v", err)
	}
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var inner protocol.SessionMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		t.Fatalf("decode session message: %v", err)
	}
	innerRaw, err := json.Marshal(inner.Data)
	if err != nil {
		t.Fatalf("re-marshal invoke payload: %v", err)
	}
	var payload protocol.InvokePayload
	if err := json.Unmarshal(innerRaw, &payload); err != nil {
		t.Fatalf("decode invoke payload: %v", err)
	}
	return payload.BackwardsRequestID
}

func TestFullDuplexClientStreamsResponsesUntilEnd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	wr := writer.New(&out)
	rd := reader.New(nil, nil)

	pr, pw := io.Pipe()
	go func() { _ = rd.Run(pr) }()

	client := NewFullDuplexClient("s1", rd, wr)
	events, err := client.Invoke(context.Background(), InvokeType("invoke_tool"), map[string]string{"tool": "add"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	reqID := extractRequestID(t, &out)

	go func() {
		writeEnvelope(pw, reqID, protocol.BackwardsResponse, json.RawMessage(`{"n":1}`))
		writeEnvelope(pw, reqID, protocol.BackwardsResponse, json.RawMessage(`{"n":2}`))
		writeEnvelope(pw, reqID, protocol.BackwardsEnd, nil)
	}()

	var got []string
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("unexpected event error: %v", ev.Err)
		}
		if ev.Data != nil {
			got = append(got, string(ev.Data))
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 stream events, got %v", got)
	}
}

func TestFullDuplexClientSurfacesBackwardsError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	wr := writer.New(&out)
	rd := reader.New(nil, nil)

	pr, pw := io.Pipe()
	go func() { _ = rd.Run(pr) }()

	client := NewFullDuplexClient("s1", rd, wr)
	events, err := client.Invoke(context.Background(), InvokeType("invoke_tool"), map[string]string{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	reqID := extractRequestID(t, &out)

	go writeEnvelope(pw, reqID, protocol.BackwardsErrorEvt, nil)

	var sawErr bool
	for ev := range events {
		if ev.Err != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatal("expected a terminal error event")
	}
}

func writeEnvelope(w io.Writer, reqID string, event protocol.BackwardsEventType, data json.RawMessage) {
	body := protocol.BackwardsInvocationResponseEvent{
		BackwardsRequestID: reqID,
		Event:              event,
		Data:               data,
	}
	bodyRaw, _ := json.Marshal(body)
	env := protocol.Envelope{
		SessionID: "s1",
		Event:     protocol.EventBackwardsResponse,
		Data:      bodyRaw,
	}
	line, _ := json.Marshal(env)
	_, _ = w.Write(append(line, '\n'))
}
