// Package invoke implements the backwards-invocation client (component
// C8): the plugin-to-host request/typed-streaming-reply path every
// Session sub-API delegates to. Requests are correlated to replies by
// a google/uuid request id matched against a reader subscription,
// rather than a single pending-request map keyed by integer id.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	internalhttp "github.com/pluginrt/plugin-go-sdk/pkg/internal/http"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
	"github.com/pluginrt/plugin-go-sdk/pkg/reader"
	"github.com/pluginrt/plugin-go-sdk/pkg/writer"
)

// InvokeType is the fixed discriminator each Session sub-API (Model,
// Tool, App, WorkflowNode, Storage, File) supplies to identify which
// backwards action it is issuing.
type InvokeType string

const (
	// roundTimeout is how long a full-duplex read waits for the next
	// matching envelope before ticking the empty-tick counter.
	roundTimeout = 1 * time.Second
	// maxEmptyTicks bounds consecutive empty ticks before the
	// invocation is declared dead (~250s at a 1s round timeout).
	maxEmptyTicks = 250

	httpTimeout = 300 * time.Second
)

// Event is one decoded reply yielded on the channel Invoke returns:
// either a stream item (Data) or a terminal error (Err). Normal
// completion is signalled by the channel closing, not by an Event.
type Event struct {
	Data json.RawMessage
	Err  error
}

// FullDuplexClient issues backwards invocations over the shared
// reader/writer pair used by the stdio and TCP transports.
type FullDuplexClient struct {
	sessionID string
	rd        *reader.Reader
	wr        *writer.Writer
}

// NewFullDuplexClient builds a client bound to one session's shared
// reader and writer handles.
func NewFullDuplexClient(sessionID string, rd *reader.Reader, wr *writer.Writer) *FullDuplexClient {
	return &FullDuplexClient{sessionID: sessionID, rd: rd, wr: wr}
}

// Invoke issues a backwards invocation of the given type with payload,
// returning a channel of decoded reply events. The channel is closed
// after a terminal event (end or error) or after maxEmptyTicks
// consecutive idle rounds. Callers should drain it to completion; the
// subscription is always unsubscribed via defer regardless of how the
// caller exits.
func (c *FullDuplexClient) Invoke(ctx context.Context, invokeType InvokeType, payload interface{}) (<-chan Event, error) {
	reqID := uuid.NewString()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("invoke: marshal request payload: %w", err)
	}

	// Subscribe before writing the request so a host that replies
	// faster than this goroutine can never race past registration.
	sub := c.rd.Subscribe(func(env *protocol.Envelope) bool {
		if env.Event != protocol.EventBackwardsResponse {
			return false
		}
		var peek protocol.BackwardsInvocationResponseEvent
		if err := env.DataAs(&peek); err != nil {
			return false
		}
		return peek.BackwardsRequestID == reqID
	}, 16)

	inner := protocol.SessionMessage{
		Type: protocol.SessionInvoke,
		Data: protocol.InvokePayload{
			Type:               string(invokeType),
			BackwardsRequestID: reqID,
			Request:            raw,
		},
	}
	if err := c.wr.SessionMessage(c.sessionID, inner); err != nil {
		sub.Close()
		return nil, fmt.Errorf("invoke: write backwards-invocation request: %w", err)
	}

	out := make(chan Event, 1)
	go c.pump(ctx, sub, out)
	return out, nil
}

func (c *FullDuplexClient) pump(ctx context.Context, sub *reader.Subscription, out chan<- Event) {
	defer sub.Close()
	defer close(out)

	emptyTicks := 0
	for {
		select {
		case <-ctx.Done():
			out <- Event{Err: ctx.Err()}
			return
		default:
		}

		timeout := time.After(roundTimeout)
		env, ok := sub.ReadTimeout(timeout)
		if !ok && env == nil {
			emptyTicks++
			if emptyTicks >= maxEmptyTicks {
				out <- Event{Err: &contract.BackwardsInvocationError{Message: contract.ErrInvocationExitedWithoutResponse, Timeout: true}}
				return
			}
			continue
		}
		emptyTicks = 0

		var body protocol.BackwardsInvocationResponseEvent
		if err := env.DataAs(&body); err != nil {
			out <- Event{Err: fmt.Errorf("invoke: decode backwards-invocation reply: %w", err)}
			continue
		}

		switch body.Event {
		case protocol.BackwardsResponse:
			out <- Event{Data: body.Data}
		case protocol.BackwardsErrorEvt:
			out <- Event{Err: &contract.BackwardsInvocationError{Message: body.Message}}
			return
		case protocol.BackwardsEnd:
			return
		}
	}
}

// HTTPClient issues backwards invocations by posting the framed
// payload to the daemon's HTTP transaction endpoint and decoding the
// line-delimited stream of reply envelopes, built on
// pkg/internal/http.Client's pooled-transport discipline.
type HTTPClient struct {
	cli *internalhttp.Client
}

// NewHTTPClient builds an HTTP backwards-invocation client pointed at
// daemonURL (e.g. DIFY_PLUGIN_DAEMON_URL), with a single 300s client
// timeout bounding the whole exchange: connect, request write, and the
// streamed reply body.
func NewHTTPClient(daemonURL string) *HTTPClient {
	return &HTTPClient{
		cli: internalhttp.NewClient(internalhttp.Config{
			BaseURL: daemonURL,
			Timeout: httpTimeout,
		}),
	}
}

// Invoke posts the backwards-invocation request and streams the
// daemon's line-delimited envelope response, decoding each line
// through the same BackwardsInvocationResponseEvent path the
// full-duplex client uses.
func (c *HTTPClient) Invoke(ctx context.Context, sessionID string, invokeType InvokeType, payload interface{}) (<-chan Event, error) {
	reqID := uuid.NewString()

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("invoke: marshal request payload: %w", err)
	}

	body := protocol.InvokePayload{
		Type:               string(invokeType),
		BackwardsRequestID: reqID,
		Request:            raw,
	}

	resp, err := c.cli.DoStream(ctx, internalhttp.Request{
		Method:  http.MethodPost,
		Path:    "/backwards-invocation/transaction",
		Headers: map[string]string{"Dify-Plugin-Session-ID": sessionID},
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke: backwards-invocation request failed: %w", err)
	}

	out := make(chan Event, 1)
	go c.streamResponse(resp.Body, out)
	return out, nil
}

// streamResponse reads the daemon's line-delimited envelope response
// exactly like the stdio transport's reader, decoding each line into a
// BackwardsInvocationResponseEvent and yielding it on out. The
// response body's own end-of-stream closes out without an error;
// there is no separate "end" frame to wait for on this transport.
func (c *HTTPClient) streamResponse(body io.ReadCloser, out chan<- Event) {
	defer close(out)
	defer body.Close()

	scanner := protocol.LineScanner(body)
	codec := &protocol.Codec{}

	for scanner.Scan() {
		env, skip, err := codec.Decode(scanner.Bytes())
		if skip {
			continue
		}
		if err != nil {
			out <- Event{Err: fmt.Errorf("invoke: decode backwards-invocation stream: %w", err)}
			continue
		}

		var reply protocol.BackwardsInvocationResponseEvent
		if err := env.DataAs(&reply); err != nil {
			out <- Event{Err: fmt.Errorf("invoke: decode backwards-invocation reply: %w", err)}
			continue
		}

		switch reply.Event {
		case protocol.BackwardsResponse:
			out <- Event{Data: reply.Data}
		case protocol.BackwardsErrorEvt:
			out <- Event{Err: &contract.BackwardsInvocationError{Message: reply.Message}}
			return
		case protocol.BackwardsEnd:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- Event{Err: fmt.Errorf("invoke: backwards-invocation stream read failed: %w", err)}
	}
}
