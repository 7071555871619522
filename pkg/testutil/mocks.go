// Package testutil provides mock implementations of the plugin
// contracts (pkg/contract) for testing the dispatcher, executor, and
// registry without real tool/model/endpoint code.
package testutil

import (
	"context"
	"sync"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
)

// MockTool is a mock implementation of contract.Tool for testing.
type MockTool struct {
	InvokeFunc    func(rt contract.RuntimeContext, parameters map[string]interface{}) ([]contract.ToolMessage, error)
	ValidateErr   error
	RuntimeParams map[string]interface{}

	mu          sync.Mutex
	InvokeCalls []map[string]interface{}
}

func (m *MockTool) ValidateCredentials(contract.RuntimeContext) error { return m.ValidateErr }

func (m *MockTool) RuntimeParameters() map[string]interface{} { return m.RuntimeParams }

func (m *MockTool) Invoke(rt contract.RuntimeContext, parameters map[string]interface{}) (<-chan contract.ToolMessage, <-chan error) {
	m.mu.Lock()
	m.InvokeCalls = append(m.InvokeCalls, parameters)
	m.mu.Unlock()

	out := make(chan contract.ToolMessage)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)

		msgs := []contract.ToolMessage{contract.Text("mock result")}
		var err error
		if m.InvokeFunc != nil {
			msgs, err = m.InvokeFunc(rt, parameters)
		}
		if err != nil {
			errc <- err
			return
		}
		for _, msg := range msgs {
			select {
			case out <- msg:
			case <-rt.Context.Done():
				errc <- rt.Context.Err()
				return
			}
		}
	}()
	return out, errc
}

// MockLanguageModel is a mock implementation of contract.LanguageModel
// for testing.
type MockLanguageModel struct {
	InvokeFunc func(ctx context.Context, rt contract.RuntimeContext, opts contract.GenerateOptions) (*contract.GenerateResult, error)
	StreamFunc func(ctx context.Context, rt contract.RuntimeContext, opts contract.GenerateOptions) (<-chan contract.StreamChunk, <-chan error)

	mu          sync.Mutex
	InvokeCalls []contract.GenerateOptions
}

func (m *MockLanguageModel) Invoke(ctx context.Context, rt contract.RuntimeContext, opts contract.GenerateOptions) (*contract.GenerateResult, error) {
	m.mu.Lock()
	m.InvokeCalls = append(m.InvokeCalls, opts)
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, rt, opts)
	}
	in, out, total := int64(10), int64(5), int64(15)
	return &contract.GenerateResult{
		Text:  "mock response",
		Usage: contract.Usage{InputTokens: &in, OutputTokens: &out, TotalTokens: &total},
	}, nil
}

func (m *MockLanguageModel) Stream(ctx context.Context, rt contract.RuntimeContext, opts contract.GenerateOptions) (<-chan contract.StreamChunk, <-chan error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, rt, opts)
	}
	out := make(chan contract.StreamChunk, 2)
	errc := make(chan error, 1)
	out <- contract.StreamChunk{Text: "mock "}
	out <- contract.StreamChunk{Text: "response"}
	close(out)
	close(errc)
	return out, errc
}

func (m *MockLanguageModel) NumTokens(ctx context.Context, rt contract.RuntimeContext, opts contract.GenerateOptions) (int, error) {
	total := 0
	for _, msg := range opts.Messages {
		for _, c := range msg.Content {
			if t, ok := c.(contract.TextContent); ok {
				total += len(t.Text) / 4
			}
		}
	}
	return total, nil
}

// MockEndpoint is a mock implementation of contract.Endpoint for testing.
type MockEndpoint struct {
	InvokeFunc func(ctx context.Context, rt contract.RuntimeContext, req contract.HTTPRequest) (*contract.HTTPResponse, error)
}

func (m *MockEndpoint) Invoke(ctx context.Context, rt contract.RuntimeContext, req contract.HTTPRequest) (*contract.HTTPResponse, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, rt, req)
	}
	return &contract.HTTPResponse{Status: 200}, nil
}

// MockOAuthHandler is a mock implementation of contract.OAuthHandler for testing.
type MockOAuthHandler struct {
	AuthorizationURLFunc func(ctx context.Context, rt contract.RuntimeContext, redirectURI string) (string, error)
	CredentialsFunc      func(ctx context.Context, rt contract.RuntimeContext, code string) (map[string]interface{}, error)
}

func (m *MockOAuthHandler) AuthorizationURL(ctx context.Context, rt contract.RuntimeContext, redirectURI string) (string, error) {
	if m.AuthorizationURLFunc != nil {
		return m.AuthorizationURLFunc(ctx, rt, redirectURI)
	}
	return "https://example.com/oauth/authorize", nil
}

func (m *MockOAuthHandler) Credentials(ctx context.Context, rt contract.RuntimeContext, code string) (map[string]interface{}, error) {
	if m.CredentialsFunc != nil {
		return m.CredentialsFunc(ctx, rt, code)
	}
	return map[string]interface{}{"access_token": "mock-token"}, nil
}

// NewRuntimeContext builds a RuntimeContext suitable for tests, with a
// background context and empty credentials unless overridden.
func NewRuntimeContext(sessionID, userID string) contract.RuntimeContext {
	return contract.RuntimeContext{
		Context:     context.Background(),
		Credentials: map[string]interface{}{},
		UserID:      userID,
		SessionID:   sessionID,
	}
}
