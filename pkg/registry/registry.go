// Package registry holds the loaded extension classes the IO server
// dispatches into: tool providers, model providers, and the HTTP
// endpoint route table (component C5). It is populated once at startup
// by an external loader (see pkg/manifest for a reference implementation)
// and is otherwise a pure, read-mostly lookup structure — the core never
// discovers plugins itself.
package registry

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
)

// ToolProviderEntry is a registered tool provider: its config and the
// tools it exposes.
type ToolProviderEntry struct {
	Config contract.ToolProviderConfig
	Tools  map[string]contract.Tool
}

// ModelProviderEntry is a registered model provider and the config it
// was declared with.
type ModelProviderEntry struct {
	Config   map[string]interface{}
	Provider contract.ModelProvider
}

// Registry is the process-wide (but never global-variable) lookup table
// for every extension kind, modeled on the teacher's pkg/registry.Registry
// — generalized from "provider name -> AI SDK Provider" to the three
// index kinds §3's data model names.
type Registry struct {
	mu             sync.RWMutex
	toolProviders  map[string]*ToolProviderEntry
	modelProviders map[string]*ModelProviderEntry
	endpoints      chi.Router
	routes         []contract.Route
	oauth          map[string]contract.OAuthHandler
	agents         map[string]contract.AgentStrategy
}

// New creates an empty Registry ready for RegisterXxx calls.
func New() *Registry {
	return &Registry{
		toolProviders:  make(map[string]*ToolProviderEntry),
		modelProviders: make(map[string]*ModelProviderEntry),
		endpoints:      chi.NewRouter(),
		oauth:          make(map[string]contract.OAuthHandler),
		agents:         make(map[string]contract.AgentStrategy),
	}
}

// RegisterToolProvider registers a tool provider and its tools.
func (r *Registry) RegisterToolProvider(name string, cfg contract.ToolProviderConfig, tools map[string]contract.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolProviders[name] = &ToolProviderEntry{Config: cfg, Tools: tools}
}

// Tool looks up a tool by (provider, tool-name), per §4.5.
func (r *Registry) Tool(provider, name string) (contract.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.toolProviders[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", contract.ErrProviderNotFound, provider)
	}
	tool, ok := entry.Tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", contract.ErrToolNotFound, provider, name)
	}
	return tool, nil
}

// RegisterModelProvider registers a model provider by name.
func (r *Registry) RegisterModelProvider(name string, cfg map[string]interface{}, p contract.ModelProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelProviders[name] = &ModelProviderEntry{Config: cfg, Provider: p}
}

// ModelProvider looks up a model provider by its exact name.
func (r *Registry) ModelProvider(name string) (contract.ModelProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.modelProviders[name]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", contract.ErrProviderNotFound, name)
	}
	return entry.Provider, nil
}

// RegisterRoute adds one entry to the ordered HTTP endpoint route table.
// Routes are matched in registration order by the underlying chi.Mux,
// which itself prefers more specific patterns — the "ordered list"
// language in §3 is preserved because registration order is what the
// manifest loader controls.
func (r *Registry) RegisterRoute(route contract.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	method := route.Method
	if method == "" {
		method = http.MethodGet
	}
	r.endpoints.MethodFunc(method, route.Pattern, func(w http.ResponseWriter, req *http.Request) {})
}

// MatchRoute dispatches an incoming HTTP request through the endpoint
// route table, yielding the matched endpoint and its path params, or
// contract.ErrRouteNotFound (§4.5, §4.13).
func (r *Registry) MatchRoute(method, path string) (contract.Endpoint, map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rctx := chi.NewRouteContext()
	if !r.endpoints.Match(rctx, method, path) {
		return nil, nil, fmt.Errorf("%w: %s %s", contract.ErrRouteNotFound, method, path)
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}

	pattern := rctx.RoutePattern()
	for _, route := range r.routes {
		if route.Method == method && route.Pattern == pattern {
			return route.Endpoint, params, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s %s", contract.ErrRouteNotFound, method, path)
}

// RegisterOAuthHandler registers the OAuth handler for a provider.
func (r *Registry) RegisterOAuthHandler(provider string, h contract.OAuthHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oauth[provider] = h
}

// OAuthHandler looks up the OAuth handler for a provider.
func (r *Registry) OAuthHandler(provider string) (contract.OAuthHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.oauth[provider]
	if !ok {
		return nil, fmt.Errorf("%w: oauth provider %q", contract.ErrProviderNotFound, provider)
	}
	return h, nil
}

// RegisterAgentStrategy registers a named agent strategy.
func (r *Registry) RegisterAgentStrategy(name string, a contract.AgentStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = a
}

// AgentStrategy looks up a named agent strategy.
func (r *Registry) AgentStrategy(name string) (contract.AgentStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: agent strategy %q", contract.ErrProviderNotFound, name)
	}
	return a, nil
}
