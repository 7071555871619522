package server

import (
	"context"
	"encoding/json"

	"github.com/pluginrt/plugin-go-sdk/pkg/contract"
	"github.com/pluginrt/plugin-go-sdk/pkg/dispatcher"
	"github.com/pluginrt/plugin-go-sdk/pkg/executor"
	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
	"github.com/pluginrt/plugin-go-sdk/pkg/session"
)

// The request payload shapes below mirror the wire format the action
// set of §4.11 is dispatched with — see scenario S1 for invokeToolRequest
// as the literal worked example. Every struct embeds the credentials/
// user_id pair every action carries.
type baseRequest struct {
	Provider    string                 `json:"provider" validate:"required"`
	Credentials map[string]interface{} `json:"credentials"`
	UserID      string                 `json:"user_id"`
}

func (b baseRequest) runtimeContext(ctx context.Context, env *protocol.Envelope) contract.RuntimeContext {
	rt := contract.RuntimeContext{
		Context:     ctx,
		Credentials: b.Credentials,
		UserID:      b.UserID,
		SessionID:   env.SessionID,
	}
	if sess := session.FromContext(ctx); sess != nil {
		rt.Invoker = sess.Invoker()
	}
	return rt
}

type validateCredentialsRequest struct {
	baseRequest
	Tool string `json:"tool" validate:"required"`
}

type invokeToolRequest struct {
	baseRequest
	Tool           string                 `json:"tool" validate:"required"`
	ToolParameters map[string]interface{} `json:"tool_parameters"`
}

type runtimeParametersRequest struct {
	Provider string `json:"provider" validate:"required"`
	Tool     string `json:"tool" validate:"required"`
}

type validateModelCredentialsRequest struct {
	baseRequest
	ModelType string `json:"model_type" validate:"required"`
	Model     string `json:"model" validate:"required"`
}

type modelMessagesRequest struct {
	baseRequest
	Model          string                 `json:"model" validate:"required"`
	PromptMessages []contract.ModelMessage `json:"prompt_messages"`
	ModelParameters map[string]interface{} `json:"model_parameters"`
	Stop            []string                `json:"stop"`
}

type textsRequest struct {
	baseRequest
	Model string   `json:"model" validate:"required"`
	Texts []string `json:"texts"`
}

type rerankRequest struct {
	baseRequest
	Model     string   `json:"model" validate:"required"`
	Query     string   `json:"query"`
	Documents []string `json:"docs"`
	TopN      int      `json:"top_n"`
}

type ttsRequest struct {
	baseRequest
	Model string `json:"model" validate:"required"`
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type ttsVoicesRequest struct {
	baseRequest
	Model string `json:"model" validate:"required"`
}

type speechToTextRequest struct {
	baseRequest
	Model    string `json:"model" validate:"required"`
	Audio    string `json:"audio"`
	MIMEType string `json:"mime_type"`
}

type moderationRequest struct {
	baseRequest
	Model string `json:"model" validate:"required"`
	Text  string `json:"text"`
}

type modelSchemasRequest struct {
	Provider string `json:"provider" validate:"required"`
}

type endpointRequest struct {
	RawHTTPRequest string `json:"raw_http_request" validate:"required"`
}

type agentStrategyRequest struct {
	Strategy   string                   `json:"strategy" validate:"required"`
	Messages   []contract.ModelMessage `json:"messages"`
	Parameters map[string]interface{}  `json:"parameters"`
}

type oauthAuthorizationURLRequest struct {
	Provider    string `json:"provider" validate:"required"`
	RedirectURI string `json:"redirect_uri"`
}

type oauthCredentialsRequest struct {
	Provider string `json:"provider" validate:"required"`
	Code     string `json:"code"`
}

// scalar wraps a single non-streaming result so handleRequest's "scalar
// result -> {result: value}" branch (§4.11) has something to wrap; nil
// results (e.g. a successful validate-credentials call) are left as nil
// so no stream event is emitted before the terminal end.
func scalar(v interface{}, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// RegisterRoutes wires every §4.11 action onto ex, in the exact
// dispatch order an external loader's manifest would declare them. This
// is the core's fixed action set — every plugin process registers all
// of these regardless of which extensions the loaded manifest actually
// declares; the registry itself reports "not found" for anything the
// manifest didn't register.
func RegisterRoutes(d *dispatcher.Dispatcher, ex *executor.Executor) {
	d.Register(dispatcher.Route{
		Type: "tool", Action: "validate_credentials", Input: &validateCredentialsRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req validateCredentialsRequest
			_ = json.Unmarshal(data, &req)
			return scalar(nil, ex.ToolValidateCredentials(req.runtimeContext(ctx, env), req.Provider, req.Tool))
		},
	})

	d.Register(dispatcher.Route{
		Type: "tool", Action: "invoke_tool", Input: &invokeToolRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req invokeToolRequest
			_ = json.Unmarshal(data, &req)
			return ex.InvokeTool(req.runtimeContext(ctx, env), req.Provider, req.Tool, req.ToolParameters), nil
		},
	})

	d.Register(dispatcher.Route{
		Type: "tool", Action: "get_runtime_parameters", Input: &runtimeParametersRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req runtimeParametersRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.ToolRuntimeParameters(req.Provider, req.Tool))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "validate_provider_credentials", Input: &baseRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req baseRequest
			_ = json.Unmarshal(data, &req)
			return scalar(nil, ex.ModelValidateProviderCredentials(req.runtimeContext(ctx, env), req.Provider))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "validate_model_credentials", Input: &validateModelCredentialsRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req validateModelCredentialsRequest
			_ = json.Unmarshal(data, &req)
			return scalar(nil, ex.ModelValidateModelCredentials(req.runtimeContext(ctx, env), req.Provider, req.ModelType, req.Model))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "invoke_llm", Input: &modelMessagesRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req modelMessagesRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.InvokeLLM(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, toGenerateOptions(req)))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "get_llm_num_tokens", Input: &modelMessagesRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req modelMessagesRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.LLMNumTokens(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, toGenerateOptions(req)))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "invoke_text_embedding", Input: &textsRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req textsRequest
			_ = json.Unmarshal(data, &req)
			embeddings, usage, err := ex.InvokeTextEmbedding(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, req.Texts)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"embeddings": embeddings, "usage": usage}, nil
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "get_text_embedding_num_tokens", Input: &textsRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req textsRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.TextEmbeddingNumTokens(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, req.Texts))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "invoke_rerank", Input: &rerankRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req rerankRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.InvokeRerank(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, req.Query, req.Documents, req.TopN))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "invoke_tts", Input: &ttsRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req ttsRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.InvokeTTS(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, req.Text, req.Voice))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "get_tts_voices", Input: &ttsVoicesRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req ttsVoicesRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.TTSVoices(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "invoke_speech2text", Input: &speechToTextRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req speechToTextRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.InvokeSpeechToText(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, req.Audio, req.MIMEType))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "invoke_moderation", Input: &moderationRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req moderationRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.InvokeModeration(ctx, req.runtimeContext(ctx, env), req.Provider, req.Model, req.Text))
		},
	})

	d.Register(dispatcher.Route{
		Type: "model", Action: "get_ai_model_schemas", Input: &modelSchemasRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req modelSchemasRequest
			_ = json.Unmarshal(data, &req)
			return scalar(ex.GetAIModelSchemas(req.Provider))
		},
	})

	d.Register(dispatcher.Route{
		Type: "endpoint", Action: "invoke_endpoint", Input: &endpointRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req endpointRequest
			_ = json.Unmarshal(data, &req)
			rt := contract.RuntimeContext{Context: ctx, SessionID: env.SessionID}
			if sess := session.FromContext(ctx); sess != nil {
				rt.Invoker = sess.Invoker()
			}
			return ex.InvokeEndpoint(ctx, rt, req.RawHTTPRequest), nil
		},
	})

	d.Register(dispatcher.Route{
		Type: "agent", Action: "invoke_agent_strategy", Input: &agentStrategyRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req agentStrategyRequest
			_ = json.Unmarshal(data, &req)
			rt := contract.RuntimeContext{Context: ctx, SessionID: env.SessionID}
			if sess := session.FromContext(ctx); sess != nil {
				rt.Invoker = sess.Invoker()
			}
			return ex.InvokeAgentStrategy(rt, req.Strategy, req.Messages, req.Parameters), nil
		},
	})

	d.Register(dispatcher.Route{
		Type: "oauth", Action: "get_authorization_url", Input: &oauthAuthorizationURLRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req oauthAuthorizationURLRequest
			_ = json.Unmarshal(data, &req)
			rt := contract.RuntimeContext{Context: ctx, SessionID: env.SessionID}
			return scalar(ex.GetAuthorizationURL(ctx, rt, req.Provider, req.RedirectURI))
		},
	})

	d.Register(dispatcher.Route{
		Type: "oauth", Action: "get_credentials", Input: &oauthCredentialsRequest{},
		Handler: func(ctx context.Context, env *protocol.Envelope, data json.RawMessage) (interface{}, error) {
			var req oauthCredentialsRequest
			_ = json.Unmarshal(data, &req)
			rt := contract.RuntimeContext{Context: ctx, SessionID: env.SessionID}
			return scalar(ex.GetCredentials(ctx, rt, req.Provider, req.Code))
		},
	})
}

func toGenerateOptions(req modelMessagesRequest) contract.GenerateOptions {
	opts := contract.GenerateOptions{Messages: req.PromptMessages, Stop: req.Stop}
	if temp, ok := req.ModelParameters["temperature"].(float64); ok {
		opts.Temperature = &temp
	}
	if maxTokens, ok := req.ModelParameters["max_tokens"].(float64); ok {
		v := int(maxTokens)
		opts.MaxTokens = &v
	}
	return opts
}
