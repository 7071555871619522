package reader

import (
	"strings"
	"testing"
	"time"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

func TestReaderFanOutDeliversMatchingEnvelopes(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"session_id":"s1","event":"request","data":{"type":"tool","action":"invoke"}}`,
		``,
		`{"session_id":"s2","event":"request","data":{"type":"model","action":"invoke"}}`,
		`{"session_id":"s1","event":"backwards_response","data":{"backwards_request_id":"r1"}}`,
	}, "\n")

	r := New(nil, nil)
	sub := r.Subscribe(func(env *protocol.Envelope) bool {
		return env.SessionID == "s1"
	}, 4)
	defer sub.Close()

	go func() {
		_ = r.Run(strings.NewReader(input))
	}()

	first, ok := sub.Read()
	if !ok {
		t.Fatal("expected first matching envelope")
	}
	if first.Event != protocol.EventRequest {
		t.Fatalf("expected request event, got %v", first.Event)
	}

	second, ok := sub.Read()
	if !ok {
		t.Fatal("expected second matching envelope")
	}
	if second.Event != protocol.EventBackwardsResponse {
		t.Fatalf("expected backwards_response event, got %v", second.Event)
	}

	<-r.Done()
}

func TestReaderReadTimeoutWhenIdle(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	sub := r.Subscribe(func(*protocol.Envelope) bool { return true }, 1)
	defer sub.Close()

	timeout := time.After(20 * time.Millisecond)
	env, ok := sub.ReadTimeout(timeout)
	if ok || env != nil {
		t.Fatalf("expected (nil, false) on idle timeout, got (%v, %v)", env, ok)
	}
}

func TestReaderParseErrorsAreReportedAndLoopContinues(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`not json`,
		`{"session_id":"s1","event":"request","data":{}}`,
	}, "\n")

	var reportedRaw string
	r := New(nil, func(raw string, err error) {
		reportedRaw = raw
	})
	sub := r.Subscribe(func(*protocol.Envelope) bool { return true }, 4)
	defer sub.Close()

	go func() {
		_ = r.Run(strings.NewReader(input))
	}()

	env, ok := sub.Read()
	if !ok {
		t.Fatal("expected the valid envelope to still be delivered")
	}
	if env.SessionID != "s1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if reportedRaw != "not json" {
		t.Fatalf("expected parse error callback with raw line, got %q", reportedRaw)
	}
}

func TestSubscriptionCloseIsIdempotentAndUnblocksRead(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	sub := r.Subscribe(func(*protocol.Envelope) bool { return true }, 0)

	sub.Close()
	sub.Close()

	env, ok := sub.Read()
	if ok || env != nil {
		t.Fatalf("expected closed subscription to yield (nil, false), got (%v, %v)", env, ok)
	}
}

func TestPredicatePanicIsRecoveredAndSkipped(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	panicky := r.Subscribe(func(*protocol.Envelope) bool { panic("boom") }, 4)
	defer panicky.Close()
	sane := r.Subscribe(func(*protocol.Envelope) bool { return true }, 4)
	defer sane.Close()

	go func() {
		_ = r.Run(strings.NewReader(`{"session_id":"s1","event":"request","data":{}}` + "\n"))
	}()

	env, ok := sane.Read()
	if !ok {
		t.Fatal("expected the sane subscriber to still receive the envelope")
	}
	if env.SessionID != "s1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}
