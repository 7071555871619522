package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/pluginrt/plugin-go-sdk/pkg/invoke"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
	"github.com/pluginrt/plugin-go-sdk/pkg/reader"
	"github.com/pluginrt/plugin-go-sdk/pkg/writer"
)

func TestSessionToolDelegatesToFullDuplexClient(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	wr := writer.New(&out)
	rd := reader.New(nil, nil)

	pr, pw := io.Pipe()
	go func() { _ = rd.Run(pr) }()
	defer pw.Close()

	duplex := invoke.NewFullDuplexClient("s1", rd, wr)
	sess := New("s1", duplex)

	events, err := sess.Tool().Invoke(context.Background(), map[string]string{"tool": "add"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	line := strings.SplitN(out.String(), "\n", 2)[0]
	var msg protocol.OutboundMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		t.Fatalf("decode outbound: %v", err)
	}
	if msg.Event != protocol.OutboundSession {
		t.Fatalf("expected session event, got %v", msg.Event)
	}

	go func() {
		raw, _ := json.Marshal(msg.Data)
		var inner protocol.SessionMessage
		_ = json.Unmarshal(raw, &inner)
		innerRaw, _ := json.Marshal(inner.Data)
		var payload protocol.InvokePayload
		_ = json.Unmarshal(innerRaw, &payload)

		body := protocol.BackwardsInvocationResponseEvent{
			BackwardsRequestID: payload.BackwardsRequestID,
			Event:              protocol.BackwardsEnd,
		}
		bodyRaw, _ := json.Marshal(body)
		env := protocol.Envelope{SessionID: "s1", Event: protocol.EventBackwardsResponse, Data: bodyRaw}
		line, _ := json.Marshal(env)
		_, _ = pw.Write(append(line, '\n'))
	}()

	for range events {
	}
}

func TestSessionString(t *testing.T) {
	t.Parallel()
	sess := New("s1", nil)
	if sess.String() != "session(id=s1)" {
		t.Fatalf("unexpected String(): %q", sess.String())
	}
}
