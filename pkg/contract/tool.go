package contract

// Tool is the contract a plugin-supplied tool implementation satisfies.
// It is the narrow adapter shell the distilled spec calls out as NOT the
// hard part (§1) — the executor (C11) only ever calls through this.
type Tool interface {
	// ValidateCredentials checks the provider-level credentials for this
	// tool's provider. Returns a non-nil error on failure.
	ValidateCredentials(rt RuntimeContext) error

	// Invoke runs the tool, streaming zero or more ToolMessage values on
	// the returned channel before it closes. An error mid-stream (second
	// return value, checked after the channel closes) becomes a handler
	// error (§7).
	Invoke(rt RuntimeContext, parameters map[string]interface{}) (<-chan ToolMessage, <-chan error)

	// RuntimeParameters returns the tool's declared parameter schema,
	// used by get-runtime-parameters.
	RuntimeParameters() map[string]interface{}
}

// ToolProviderConfig is the provider-level configuration a tool provider
// is registered with (credentials schema, display metadata, etc.) —
// opaque to the core beyond what the registry indexes it by.
type ToolProviderConfig map[string]interface{}

// StreamTool adapts a simple synchronous tool function into the
// channel-based Tool.Invoke contract, for the common case of a tool that
// yields its messages eagerly rather than truly streaming.
func StreamTool(fn func(rt RuntimeContext, parameters map[string]interface{}) ([]ToolMessage, error)) func(RuntimeContext, map[string]interface{}) (<-chan ToolMessage, <-chan error) {
	return func(rt RuntimeContext, parameters map[string]interface{}) (<-chan ToolMessage, <-chan error) {
		out := make(chan ToolMessage)
		errc := make(chan error, 1)
		go func() {
			defer close(out)
			defer close(errc)
			msgs, err := fn(rt, parameters)
			if err != nil {
				errc <- err
				return
			}
			for _, m := range msgs {
				select {
				case out <- m:
				case <-rt.Context.Done():
					errc <- rt.Context.Err()
					return
				}
			}
		}()
		return out, errc
	}
}
