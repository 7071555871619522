// Package dispatcher implements the ordered predicate/handler table
// (component C6): the first (type, action) match wins, and the raw
// envelope data is coerced into the handler's declared input type via
// a JSON round trip plus go-playground/validator struct-tag
// validation, mirroring the teacher's gin.ShouldBindJSON+validator
// idiom.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

// Handler processes one request envelope's decoded data and returns
// whatever the executor normalizes onto the wire. ctx carries the
// request-scoped Session (see pkg/session.FromContext) so a handler can
// build a contract.RuntimeContext with backwards-invocation access.
type Handler func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error)

// Route pairs a (type, action) match against a Handler.
type Route struct {
	Type    string
	Action  string
	Handler Handler

	// Input, if non-nil, is a pointer to a zero value of the struct the
	// raw data should be coerced into and validated before Handler
	// runs; Handler is then responsible for re-decoding into its own
	// concrete type (json.RawMessage is passed through regardless, so
	// Handler always has the original bytes too).
	Input interface{}
}

// Dispatcher is the ordered (predicate, handler) list. Routes are
// matched in registration order; the first match wins and there is no
// fallback, per the design the executor wires every Tool/Model/Endpoint
// /Agent/OAuth action through.
type Dispatcher struct {
	routes   []Route
	validate *validator.Validate
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{validate: validator.New()}
}

// Register appends a route to the dispatch table.
func (d *Dispatcher) Register(route Route) {
	d.routes = append(d.routes, route)
}

// Dispatch inspects env's data for {type, action}, finds the first
// matching route, coerces+validates the data into route.Input when
// declared, and invokes the handler. contract.ErrUnroutable is
// returned when nothing matches.
func (d *Dispatcher) Dispatch(ctx context.Context, env *protocol.Envelope) (interface{}, error) {
	var meta protocol.RequestEnvelopeData
	if err := env.DataAs(&meta); err != nil {
		return nil, &contract.ValidationError{Message: "malformed request envelope", Cause: err}
	}

	for _, route := range d.routes {
		if route.Type != meta.Type || route.Action != meta.Action {
			continue
		}

		if route.Input != nil {
			if err := d.coerce(env.Data, route.Input); err != nil {
				return nil, err
			}
		}
		return route.Handler(ctx, env, env.Data)
	}

	return nil, fmt.Errorf("%w: type=%s action=%s", contract.ErrUnroutable, meta.Type, meta.Action)
}

// coerce round-trips raw into target via encoding/json, then runs
// struct-tag validation over it.
func (d *Dispatcher) coerce(raw json.RawMessage, target interface{}) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return &contract.ValidationError{Message: "failed to decode request data", Cause: err}
	}
	if err := d.validate.Struct(target); err != nil {
		return &contract.ValidationError{Message: "request data failed validation", Cause: err}
	}
	return nil
}
