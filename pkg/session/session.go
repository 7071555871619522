// Package session implements the per-request Session (component C7):
// the session id, optional correlation ids, and the backwards-invocation
// client (over the shared reader/writer, or over HTTP in serverless
// mode) a dispatched handler uses to talk back to the daemon. Sessions are never registered in a process-wide set — their
// lifetime is scoped exactly to the handler call that created them.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/invoke"
)

// InstallMode is which transport strategy the backwards-invocation
// client should use.
type InstallMode int

const (
	ModeLocal InstallMode = iota
	ModeRemote
	ModeServerless
)

const (
	invokeModel        invoke.InvokeType = "invoke_model"
	invokeTool         invoke.InvokeType = "invoke_tool"
	invokeApp          invoke.InvokeType = "invoke_app"
	invokeWorkflowNode invoke.InvokeType = "invoke_node"
	invokeStorage      invoke.InvokeType = "invoke_storage"
	invokeFile         invoke.InvokeType = "invoke_file"
)

// Session is the per-incoming-request context created when a request
// envelope arrives and dispatched to a handler.
type Session struct {
	ID             string
	ConversationID string
	MessageID      string

	mode      InstallMode
	duplex    *invoke.FullDuplexClient
	httpClnt  *invoke.HTTPClient
}

// New builds a Session for the full-duplex (stdio/TCP) install modes.
func New(id string, duplex *invoke.FullDuplexClient) *Session {
	return &Session{ID: id, mode: ModeLocal, duplex: duplex}
}

// NewServerless builds a Session for the HTTP install mode, where
// backwards invocations go out over a pooled HTTP client instead of
// the shared reader/writer.
func NewServerless(id string, httpClnt *invoke.HTTPClient) *Session {
	return &Session{ID: id, mode: ModeServerless, httpClnt: httpClnt}
}

func (s *Session) invoke(ctx context.Context, invokeType invoke.InvokeType, payload interface{}) (<-chan invoke.Event, error) {
	switch s.mode {
	case ModeServerless:
		return s.httpClnt.Invoke(ctx, s.ID, invokeType, payload)
	default:
		return s.duplex.Invoke(ctx, invokeType, payload)
	}
}

// ModelAPI is the convenience sub-API Session.Model() returns.
type ModelAPI struct{ s *Session }

// Model returns the backwards-invocation sub-API for LLM/rerank/etc
// calls issued on the daemon's registered model providers.
func (s *Session) Model() ModelAPI { return ModelAPI{s: s} }

// LLM issues an invoke_model backwards invocation and streams typed
// replies.
func (m ModelAPI) LLM(ctx context.Context, payload interface{}) (<-chan invoke.Event, error) {
	return m.s.invoke(ctx, invokeModel, payload)
}

// Rerank issues an invoke_model backwards invocation with payload sent
// as given; the caller's payload selects the rerank model type.
func (m ModelAPI) Rerank(ctx context.Context, payload interface{}) (<-chan invoke.Event, error) {
	return m.s.invoke(ctx, invokeModel, payload)
}

// ToolAPI is the convenience sub-API Session.Tool() returns.
type ToolAPI struct{ s *Session }

// Tool returns the backwards-invocation sub-API for invoking another
// plugin's tool via the daemon.
func (s *Session) Tool() ToolAPI { return ToolAPI{s: s} }

func (t ToolAPI) Invoke(ctx context.Context, payload interface{}) (<-chan invoke.Event, error) {
	return t.s.invoke(ctx, invokeTool, payload)
}

// AppAPI is the convenience sub-API Session.App() returns.
type AppAPI struct{ s *Session }

func (s *Session) App() AppAPI { return AppAPI{s: s} }

func (a AppAPI) Invoke(ctx context.Context, payload interface{}) (<-chan invoke.Event, error) {
	return a.s.invoke(ctx, invokeApp, payload)
}

// WorkflowNodeAPI is the convenience sub-API Session.WorkflowNode() returns.
type WorkflowNodeAPI struct{ s *Session }

func (s *Session) WorkflowNode() WorkflowNodeAPI { return WorkflowNodeAPI{s: s} }

func (w WorkflowNodeAPI) Invoke(ctx context.Context, payload interface{}) (<-chan invoke.Event, error) {
	return w.s.invoke(ctx, invokeWorkflowNode, payload)
}

// StorageAPI is the convenience sub-API Session.Storage() returns.
type StorageAPI struct{ s *Session }

func (s *Session) Storage() StorageAPI { return StorageAPI{s: s} }

func (st StorageAPI) Get(ctx context.Context, key string) (<-chan invoke.Event, error) {
	return st.s.invoke(ctx, invokeStorage, map[string]string{"op": "get", "key": key})
}

func (st StorageAPI) Set(ctx context.Context, key string, value []byte) (<-chan invoke.Event, error) {
	return st.s.invoke(ctx, invokeStorage, map[string]interface{}{"op": "set", "key": key, "value": value})
}

// FileAPI is the convenience sub-API Session.File() returns.
type FileAPI struct{ s *Session }

func (s *Session) File() FileAPI { return FileAPI{s: s} }

func (f FileAPI) Fetch(ctx context.Context, fileID string) (<-chan invoke.Event, error) {
	return f.s.invoke(ctx, invokeFile, map[string]string{"file_id": fileID})
}

// String renders a Session for logs.
func (s *Session) String() string {
	return fmt.Sprintf("session(id=%s)", s.ID)
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying sess, so the dispatcher's
// request-scoped ctx parameter is how route handlers reach the Session
// that dispatched them without widening dispatcher.Handler's signature
// any further than (ctx, env, data).
func WithContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the Session installed by WithContext, or nil if
// none was.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}

// Invoker adapts the Session into a contract.Invoker, so RuntimeContext
// can hand user code a generic backwards-invocation capability without
// contract depending on either this package or pkg/invoke.
func (s *Session) Invoker() contract.Invoker { return invokerAdapter{s} }

type invokerAdapter struct{ s *Session }

func (a invokerAdapter) Invoke(ctx context.Context, invokeType string, payload interface{}) (<-chan contract.BackwardsEvent, error) {
	events, err := a.s.invoke(ctx, invoke.InvokeType(invokeType), payload)
	if err != nil {
		return nil, err
	}

	out := make(chan contract.BackwardsEvent, 1)
	go func() {
		defer close(out)
		for ev := range events {
			out <- contract.BackwardsEvent{Data: json.RawMessage(ev.Data), Err: ev.Err}
		}
	}()
	return out, nil
}
