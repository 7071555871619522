package dispatcher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

type invokeToolInput struct {
	Provider string `json:"provider" validate:"required"`
	Tool     string `json:"tool" validate:"required"`
}

func envelopeWithData(t *testing.T, data interface{}) *protocol.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return &protocol.Envelope{SessionID: "s1", Event: protocol.EventRequest, Data: raw}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	t.Parallel()

	d := New()
	var calledFirst, calledSecond bool
	d.Register(Route{Type: "tool", Action: "invoke_tool", Handler: func(context.Context, *protocol.Envelope, json.RawMessage) (interface{}, error) {
		calledFirst = true
		return "first", nil
	}})
	d.Register(Route{Type: "tool", Action: "invoke_tool", Handler: func(context.Context, *protocol.Envelope, json.RawMessage) (interface{}, error) {
		calledSecond = true
		return "second", nil
	}})

	env := envelopeWithData(t, map[string]string{"type": "tool", "action": "invoke_tool"})
	result, err := d.Dispatch(context.Background(), env)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result != "first" || !calledFirst || calledSecond {
		t.Fatalf("expected only the first registered route to run, got result=%v first=%v second=%v", result, calledFirst, calledSecond)
	}
}

func TestDispatchUnroutableAction(t *testing.T) {
	t.Parallel()

	d := New()
	env := envelopeWithData(t, map[string]string{"type": "tool", "action": "nonexistent"})

	if _, err := d.Dispatch(context.Background(), env); err == nil {
		t.Fatal("expected an unroutable error")
	}
}

func TestDispatchCoercesAndValidatesInput(t *testing.T) {
	t.Parallel()

	d := New()
	var captured invokeToolInput
	d.Register(Route{
		Type:   "tool",
		Action: "invoke_tool",
		Input:  &invokeToolInput{},
		Handler: func(ctx context.Context, env *protocol.Envelope, raw json.RawMessage) (interface{}, error) {
			_ = json.Unmarshal(raw, &captured)
			return nil, nil
		},
	})

	env := envelopeWithData(t, map[string]string{"type": "tool", "action": "invoke_tool", "provider": "basic_math", "tool": "add"})
	if _, err := d.Dispatch(context.Background(), env); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if captured.Provider != "basic_math" || captured.Tool != "add" {
		t.Fatalf("unexpected captured input: %+v", captured)
	}
}

func TestDispatchValidationFailureIsReported(t *testing.T) {
	t.Parallel()

	d := New()
	d.Register(Route{
		Type:   "tool",
		Action: "invoke_tool",
		Input:  &invokeToolInput{},
		Handler: func(context.Context, *protocol.Envelope, json.RawMessage) (interface{}, error) {
			return nil, nil
		},
	})

	env := envelopeWithData(t, map[string]string{"type": "tool", "action": "invoke_tool"})
	_, err := d.Dispatch(context.Background(), env)
	if err == nil {
		t.Fatal("expected validation failure for missing required fields")
	}
	if !contract.IsValidationError(err) {
		t.Fatalf("expected a contract.ValidationError, got %T: %v", err, err)
	}
}
