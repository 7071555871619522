package contract

import (
	"context"
	"encoding/json"
)

// BackwardsEvent is one decoded reply an Invoker call yields — the
// contract-package mirror of pkg/invoke.Event, duplicated here rather
// than imported so contract never depends on the session/invoke
// packages (they depend on contract, not the reverse).
type BackwardsEvent struct {
	Data json.RawMessage
	Err  error
}

// Invoker issues a backwards invocation (plugin -> host) from within a
// contract implementation — e.g. a LanguageModel.Invoke that needs to
// run a moderation check mid-generation (scenario S2). RuntimeContext
// threads one through so user code never has to know whether it is
// running under the full-duplex or serverless install mode.
type Invoker interface {
	Invoke(ctx context.Context, invokeType string, payload interface{}) (<-chan BackwardsEvent, error)
}

// RuntimeContext bundles credentials, the invoking user id and the active
// session id — the value every contract method is constructed/called with
// (§4.11: "construct with a runtime object bundling credentials + user id
// + session id").
type RuntimeContext struct {
	Context     context.Context
	Credentials map[string]interface{}
	UserID      string
	SessionID   string

	// Invoker is non-nil whenever the dispatching Session can issue
	// backwards invocations; it is nil in tests and in the reference
	// mocks unless explicitly wired.
	Invoker Invoker
}

// InvokeError is the family of errors whose Args may carry a Description,
// per §7's "args may include a description when the error is in the
// declared invoke error family".
type InvokeError struct {
	Description string
	Cause       error
}

func (e *InvokeError) Error() string {
	if e.Cause != nil {
		return e.Description + ": " + e.Cause.Error()
	}
	return e.Description
}

func (e *InvokeError) Unwrap() error { return e.Cause }
