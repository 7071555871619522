package registry

import (
	"context"
	"net/http"
	"testing"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
)

type stubTool struct{}

func (stubTool) ValidateCredentials(contract.RuntimeContext) error { return nil }
func (stubTool) Invoke(rt contract.RuntimeContext, _ map[string]interface{}) (<-chan contract.ToolMessage, <-chan error) {
	out := make(chan contract.ToolMessage, 1)
	errc := make(chan error, 1)
	out <- contract.Text("ok")
	close(out)
	close(errc)
	return out, errc
}
func (stubTool) RuntimeParameters() map[string]interface{} { return nil }

type stubEndpoint struct{ name string }

func (s stubEndpoint) Invoke(context.Context, contract.RuntimeContext, contract.HTTPRequest) (*contract.HTTPResponse, error) {
	return &contract.HTTPResponse{Status: 200}, nil
}

func TestRegistryToolLookup(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterToolProvider("basic_math", nil, map[string]contract.Tool{"add": stubTool{}})

	tool, err := r.Tool("basic_math", "add")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tool == nil {
		t.Fatal("expected tool to be found")
	}

	if _, err := r.Tool("basic_math", "missing"); err == nil {
		t.Fatal("expected error for missing tool")
	}
	if _, err := r.Tool("nope", "add"); err == nil {
		t.Fatal("expected error for missing provider")
	}
}

func TestRegistryRouteMatch(t *testing.T) {
	t.Parallel()

	r := New()
	ep := stubEndpoint{name: "duck"}
	r.RegisterRoute(contract.Route{Pattern: "/duck", Method: http.MethodGet, Endpoint: ep})
	r.RegisterRoute(contract.Route{Pattern: "/items/{id}", Method: http.MethodGet, Endpoint: ep})

	matched, params, err := r.MatchRoute(http.MethodGet, "/duck")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched == nil {
		t.Fatal("expected a matched endpoint")
	}
	if len(params) != 0 {
		t.Fatalf("expected no path params, got %v", params)
	}

	_, params, err = r.MatchRoute(http.MethodGet, "/items/42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["id"] != "42" {
		t.Fatalf("expected id=42, got %v", params)
	}

	if _, _, err := r.MatchRoute(http.MethodGet, "/missing"); err == nil {
		t.Fatal("expected route-not-found error")
	}
}

func TestRegistryAgentStrategyLookup(t *testing.T) {
	t.Parallel()

	r := New()
	if _, err := r.AgentStrategy("react"); err == nil {
		t.Fatal("expected error before registration")
	}
}
