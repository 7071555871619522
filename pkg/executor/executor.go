// Package executor implements component C11: it maps a dispatched
// (type, action) pair onto the user's registered contract
// implementation, normalizes the result shape onto the wire, and
// streams blob messages through the chunking protocol.
package executor

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/pluginrt/plugin-go-sdk/pkg/blob"
	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/httpbytes"
	"github.com/pluginrt/plugin-go-sdk/pkg/registry"
)

// Result is one item the executor yields on its output channel: either
// a value (a tool message, a blob chunk, an agent step, or an
// EndpointResponseFrame for the endpoint action's status/chunk frames)
// or a terminal error.
type Result struct {
	Value interface{}
	Err   error
}

// Executor dispatches actions against a Registry.
type Executor struct {
	reg *registry.Registry
}

// New creates an Executor bound to reg.
func New(reg *registry.Registry) *Executor {
	return &Executor{reg: reg}
}

// ToolValidateCredentials runs validate-credentials for a tool provider.
func (e *Executor) ToolValidateCredentials(rt contract.RuntimeContext, provider, toolName string) error {
	tool, err := e.reg.Tool(provider, toolName)
	if err != nil {
		return err
	}
	return tool.ValidateCredentials(rt)
}

// ToolRuntimeParameters runs get-runtime-parameters for a tool.
func (e *Executor) ToolRuntimeParameters(provider, toolName string) (map[string]interface{}, error) {
	tool, err := e.reg.Tool(provider, toolName)
	if err != nil {
		return nil, err
	}
	return tool.RuntimeParameters(), nil
}

// InvokeTool runs invoke-tool, normalizing each yielded ToolMessage:
// blob messages are split through the chunking protocol (§4.12) and
// every other message type passes through unchanged.
func (e *Executor) InvokeTool(rt contract.RuntimeContext, provider, toolName string, parameters map[string]interface{}) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)

		tool, err := e.reg.Tool(provider, toolName)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		msgs, errc := tool.Invoke(rt, parameters)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					msgs = nil
					if errc == nil {
						return
					}
					continue
				}
				e.emitToolMessage(msg, out)
			case err, ok := <-errc:
				if !ok {
					errc = nil
					if msgs == nil {
						return
					}
					continue
				}
				if err != nil {
					out <- Result{Err: err}
					return
				}
			}
			if msgs == nil && errc == nil {
				return
			}
		}
	}()
	return out
}

func (e *Executor) emitToolMessage(msg contract.ToolMessage, out chan<- Result) {
	if msg.Type != contract.ToolMessageBlob {
		out <- Result{Value: msg}
		return
	}
	for _, chunk := range blob.Split(msg.Blob) {
		out <- Result{Value: chunk}
	}
}

// ModelValidateProviderCredentials runs validate-provider-credentials.
func (e *Executor) ModelValidateProviderCredentials(rt contract.RuntimeContext, providerName string) error {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return err
	}
	return provider.ValidateProviderCredentials(rt)
}

// ModelValidateModelCredentials runs validate-model-credentials.
func (e *Executor) ModelValidateModelCredentials(rt contract.RuntimeContext, providerName, modelType, modelName string) error {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return err
	}
	return provider.ValidateModelCredentials(rt, modelType, modelName)
}

// InvokeLLM runs invoke-llm.
func (e *Executor) InvokeLLM(ctx context.Context, rt contract.RuntimeContext, providerName, modelName string, opts contract.GenerateOptions) (*contract.GenerateResult, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return nil, err
	}
	model, err := provider.LanguageModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.Invoke(ctx, rt, opts)
}

// LLMNumTokens runs get-llm-num-tokens.
func (e *Executor) LLMNumTokens(ctx context.Context, rt contract.RuntimeContext, providerName, modelName string, opts contract.GenerateOptions) (int, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return 0, err
	}
	model, err := provider.LanguageModel(modelName)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.NumTokens(ctx, rt, opts)
}

// InvokeTextEmbedding runs invoke-text-embedding.
func (e *Executor) InvokeTextEmbedding(ctx context.Context, rt contract.RuntimeContext, providerName, modelName string, texts []string) ([][]float64, contract.Usage, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return nil, contract.Usage{}, err
	}
	model, err := provider.EmbeddingModel(modelName)
	if err != nil {
		return nil, contract.Usage{}, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.Embed(ctx, rt, texts)
}

// TextEmbeddingNumTokens runs get-text-embedding-num-tokens.
func (e *Executor) TextEmbeddingNumTokens(ctx context.Context, rt contract.RuntimeContext, providerName, modelName string, texts []string) (int, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return 0, err
	}
	model, err := provider.EmbeddingModel(modelName)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.NumTokens(ctx, rt, texts)
}

// InvokeRerank runs invoke-rerank.
func (e *Executor) InvokeRerank(ctx context.Context, rt contract.RuntimeContext, providerName, modelName, query string, documents []string, topN int) ([]contract.RerankResult, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return nil, err
	}
	model, err := provider.RerankingModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.Rerank(ctx, rt, query, documents, topN)
}

// InvokeTTS runs invoke-tts, hex-encoding the returned audio per the
// binary-result normalization rule.
func (e *Executor) InvokeTTS(ctx context.Context, rt contract.RuntimeContext, providerName, modelName, text, voice string) (string, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return "", err
	}
	model, err := provider.SpeechModel(modelName)
	if err != nil {
		return "", fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	audio, err := model.Synthesize(ctx, rt, text, voice)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(audio), nil
}

// TTSVoices runs get-tts-voices.
func (e *Executor) TTSVoices(ctx context.Context, rt contract.RuntimeContext, providerName, modelName string) ([]string, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return nil, err
	}
	model, err := provider.SpeechModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.Voices(ctx, rt)
}

// InvokeSpeechToText runs invoke-speech2text. audioHex is the
// hex-encoded audio the dispatcher coerced from the wire.
func (e *Executor) InvokeSpeechToText(ctx context.Context, rt contract.RuntimeContext, providerName, modelName, audioHex, mimeType string) (string, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return "", err
	}
	model, err := provider.TranscriptionModel(modelName)
	if err != nil {
		return "", fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	audio, err := hex.DecodeString(audioHex)
	if err != nil {
		return "", &contract.ValidationError{Field: "audio", Message: "invalid hex", Cause: err}
	}
	return model.Transcribe(ctx, rt, audio, mimeType)
}

// InvokeModeration runs invoke-moderation.
func (e *Executor) InvokeModeration(ctx context.Context, rt contract.RuntimeContext, providerName, modelName, text string) (bool, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return false, err
	}
	model, err := provider.ModerationModel(modelName)
	if err != nil {
		return false, fmt.Errorf("%w: %s", contract.ErrModelNotFound, modelName)
	}
	return model.Moderate(ctx, rt, text)
}

// GetAIModelSchemas runs get-ai-model-schemas.
func (e *Executor) GetAIModelSchemas(providerName string) ([]map[string]interface{}, error) {
	provider, err := e.reg.ModelProvider(providerName)
	if err != nil {
		return nil, err
	}
	return provider.Schemas(), nil
}

// EndpointResponseFrame is one frame of the endpoint-invocation wire
// response: the first frame carries status/headers, subsequent frames
// carry hex-encoded body chunks.
type EndpointResponseFrame struct {
	Status  *int                `json:"status,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
	Result  string              `json:"result,omitempty"`
}

// InvokeEndpoint runs invoke-endpoint: decode the hex-encoded raw HTTP
// request, match it against the route table, invoke the user's
// endpoint, and stream the response back as a status frame followed by
// zero or more body-chunk frames.
func (e *Executor) InvokeEndpoint(ctx context.Context, rt contract.RuntimeContext, rawHTTPRequestHex string) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)

		req, err := httpbytes.DecodeRequest(rawHTTPRequestHex)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		endpoint, params, err := e.reg.MatchRoute(req.Method, req.URL.Path)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		body, err := readAll(req.Body)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		resp, err := endpoint.Invoke(ctx, rt, contract.HTTPRequest{
			Method:     req.Method,
			Path:       req.URL.Path,
			Headers:    req.Header,
			Body:       body,
			PathParams: params,
		})
		if err != nil {
			out <- Result{Err: err}
			return
		}

		status := resp.Status
		out <- Result{Value: EndpointResponseFrame{Status: &status, Headers: resp.Headers}}

		if resp.Body == nil {
			return
		}
		for chunk := range resp.Body {
			out <- Result{Value: EndpointResponseFrame{Result: hex.EncodeToString(chunk)}}
		}
	}()
	return out
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err.Error() == "EOF" {
				return buf, nil
			}
			return buf, err
		}
	}
}

// InvokeAgentStrategy runs invoke-agent-strategy.
func (e *Executor) InvokeAgentStrategy(rt contract.RuntimeContext, name string, messages []contract.ModelMessage, parameters map[string]interface{}) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)

		strategy, err := e.reg.AgentStrategy(name)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		steps, errc := strategy.Execute(rt, messages, parameters)
		for {
			select {
			case step, ok := <-steps:
				if !ok {
					steps = nil
					if errc == nil {
						return
					}
					continue
				}
				out <- Result{Value: step}
			case err, ok := <-errc:
				if !ok {
					errc = nil
					if steps == nil {
						return
					}
					continue
				}
				if err != nil {
					out <- Result{Err: err}
					return
				}
			}
			if steps == nil && errc == nil {
				return
			}
		}
	}()
	return out
}

// GetAuthorizationURL runs get-authorization-url.
func (e *Executor) GetAuthorizationURL(ctx context.Context, rt contract.RuntimeContext, providerName, redirectURI string) (string, error) {
	handler, err := e.reg.OAuthHandler(providerName)
	if err != nil {
		return "", err
	}
	return handler.AuthorizationURL(ctx, rt, redirectURI)
}

// GetCredentials runs get-credentials.
func (e *Executor) GetCredentials(ctx context.Context, rt contract.RuntimeContext, providerName, code string) (map[string]interface{}, error) {
	handler, err := e.reg.OAuthHandler(providerName)
	if err != nil {
		return nil, err
	}
	return handler.Credentials(ctx, rt, code)
}
