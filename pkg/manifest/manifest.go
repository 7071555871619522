// Package manifest implements a reference loader for the §6 filesystem
// layout: a manifest.yaml listing per-category provider YAMLs plus a
// sibling _assets/ directory of binary files. It is explicitly
// non-exhaustive (the core's actual contract with extension loading is
// the registry.Registry interface, not any one file format) — this
// loader exists for local development and the end-to-end tests, using
// goccy/go-yaml the way examples/config-loader in the pack does.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/pluginrt/plugin-go-sdk/pkg/blob"
	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
	"github.com/pluginrt/plugin-go-sdk/pkg/registry"
)

// Manifest is the top-level manifest.yaml: relative paths to the
// per-provider YAMLs declared under each extension category.
type Manifest struct {
	Plugins struct {
		Tools           []string `yaml:"tools"`
		Models          []string `yaml:"models"`
		Endpoints       []string `yaml:"endpoints"`
		AgentStrategies []string `yaml:"agent_strategies"`
	} `yaml:"plugins"`
}

// ToolProviderManifest is one per-provider YAML under plugins.tools:
// the declared provider name and the tool names it exposes. The actual
// Go types behind each name come from the Implementations the caller
// supplies — this file only says which names the plugin claims to
// register.
type ToolProviderManifest struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

// ModelProviderManifest is one per-provider YAML under plugins.models.
type ModelProviderManifest struct {
	Name       string   `yaml:"name"`
	ModelTypes []string `yaml:"model_types"`
}

// EndpointManifest is one per-route YAML under plugins.endpoints.
type EndpointManifest struct {
	Pattern string `yaml:"pattern"`
	Method  string `yaml:"method"`
}

// AgentStrategyManifest is one per-strategy YAML under
// plugins.agent_strategies.
type AgentStrategyManifest struct {
	Name string `yaml:"name"`
}

// ToolProviderImpl pairs a tool provider's declared config with the Go
// implementations of its tools, keyed by the names the manifest YAML
// must also declare.
type ToolProviderImpl struct {
	Config contract.ToolProviderConfig
	Tools  map[string]contract.Tool
}

// EndpointImpl pairs a declared (pattern, method) with the Go endpoint
// that serves it.
type EndpointImpl struct {
	Pattern  string
	Method   string
	Endpoint contract.Endpoint
}

// Implementations is the Go-side registration table a plugin author
// supplies alongside the declarative YAML tree: the YAML says which
// names the manifest claims to register, Implementations says what Go
// value backs each one. Load cross-checks the two and errors on any
// declared name with no matching implementation.
type Implementations struct {
	ToolProviders   map[string]ToolProviderImpl
	ModelProviders  map[string]contract.ModelProvider
	Endpoints       []EndpointImpl
	AgentStrategies map[string]contract.AgentStrategy
	OAuthHandlers   map[string]contract.OAuthHandler
}

// Load reads dir/manifest.yaml and every per-provider YAML it
// references, validates each declared name against impl, and returns a
// populated registry.Registry. It is not a validated, schema-complete
// YAML loader (§6) — field sets beyond what's declared above are
// ignored.
func Load(dir string, impl Implementations) (*registry.Registry, error) {
	var m Manifest
	if err := readYAML(filepath.Join(dir, "manifest.yaml"), &m); err != nil {
		return nil, fmt.Errorf("manifest: read manifest.yaml: %w", err)
	}

	reg := registry.New()

	for _, rel := range m.Plugins.Tools {
		var pm ToolProviderManifest
		if err := readYAML(filepath.Join(dir, rel), &pm); err != nil {
			return nil, fmt.Errorf("manifest: read tool provider %s: %w", rel, err)
		}
		provider, ok := impl.ToolProviders[pm.Name]
		if !ok {
			return nil, fmt.Errorf("manifest: tool provider %q declared but not implemented", pm.Name)
		}
		for _, toolName := range pm.Tools {
			if _, ok := provider.Tools[toolName]; !ok {
				return nil, fmt.Errorf("manifest: tool %s/%s declared but not implemented", pm.Name, toolName)
			}
		}
		reg.RegisterToolProvider(pm.Name, provider.Config, provider.Tools)
	}

	for _, rel := range m.Plugins.Models {
		var pm ModelProviderManifest
		if err := readYAML(filepath.Join(dir, rel), &pm); err != nil {
			return nil, fmt.Errorf("manifest: read model provider %s: %w", rel, err)
		}
		provider, ok := impl.ModelProviders[pm.Name]
		if !ok {
			return nil, fmt.Errorf("manifest: model provider %q declared but not implemented", pm.Name)
		}
		reg.RegisterModelProvider(pm.Name, nil, provider)
	}

	for _, rel := range m.Plugins.Endpoints {
		var em EndpointManifest
		if err := readYAML(filepath.Join(dir, rel), &em); err != nil {
			return nil, fmt.Errorf("manifest: read endpoint %s: %w", rel, err)
		}
		var matched *EndpointImpl
		for i := range impl.Endpoints {
			if impl.Endpoints[i].Pattern == em.Pattern && impl.Endpoints[i].Method == em.Method {
				matched = &impl.Endpoints[i]
				break
			}
		}
		if matched == nil {
			return nil, fmt.Errorf("manifest: endpoint %s %s declared but not implemented", em.Method, em.Pattern)
		}
		reg.RegisterRoute(contract.Route{Pattern: matched.Pattern, Method: matched.Method, Endpoint: matched.Endpoint})
	}

	for _, rel := range m.Plugins.AgentStrategies {
		var am AgentStrategyManifest
		if err := readYAML(filepath.Join(dir, rel), &am); err != nil {
			return nil, fmt.Errorf("manifest: read agent strategy %s: %w", rel, err)
		}
		strategy, ok := impl.AgentStrategies[am.Name]
		if !ok {
			return nil, fmt.Errorf("manifest: agent strategy %q declared but not implemented", am.Name)
		}
		reg.RegisterAgentStrategy(am.Name, strategy)
	}

	for provider, handler := range impl.OAuthHandlers {
		reg.RegisterOAuthHandler(provider, handler)
	}

	return reg, nil
}

// LoadAssets reads every regular file in dir/_assets, fragmenting each
// one through the blob-chunking protocol (component C12) the same way
// a streamed tool result is chunked — assets are transmitted as base64
// blob chunks, per the resolved Open Question deprecating hex framing.
func LoadAssets(dir string) (map[string][]protocol.BlobChunk, error) {
	assetsDir := filepath.Join(dir, "_assets")
	entries, err := os.ReadDir(assetsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: read assets dir: %w", err)
	}

	out := make(map[string][]protocol.BlobChunk, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(assetsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("manifest: read asset %s: %w", entry.Name(), err)
		}
		out[entry.Name()] = blob.Split(data)
	}
	return out, nil
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
