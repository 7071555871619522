package contract

import "context"

// ModelMessage is one turn of conversation passed to a model, built from
// the PromptMessageContent tagged variant.
type ModelMessage struct {
	Role    string                  `json:"role"`
	Content []PromptMessageContent  `json:"content"`
}

// Usage mirrors the teacher's types.Usage shape (input/output/total token
// accounting), generalized away from any one AI-SDK response format.
type Usage struct {
	InputTokens  *int64 `json:"input_tokens,omitempty"`
	OutputTokens *int64 `json:"output_tokens,omitempty"`
	TotalTokens  *int64 `json:"total_tokens,omitempty"`
}

// ModelProvider is a registered AI model provider: the contract
// equivalent of the teacher's provider.Provider interface, generalized
// from "which AI SDK backend" to "which plugin-registered provider".
type ModelProvider interface {
	Name() string
	ValidateProviderCredentials(rt RuntimeContext) error
	ValidateModelCredentials(rt RuntimeContext, modelType, modelName string) error

	LanguageModel(modelName string) (LanguageModel, error)
	EmbeddingModel(modelName string) (EmbeddingModel, error)
	RerankingModel(modelName string) (RerankingModel, error)
	SpeechModel(modelName string) (SpeechModel, error)
	TranscriptionModel(modelName string) (TranscriptionModel, error)
	ModerationModel(modelName string) (ModerationModel, error)

	// Schemas returns the declared JSON schema for every model this
	// provider exposes, used by get-ai-model-schemas.
	Schemas() []map[string]interface{}
}

// GenerateOptions is the input to LanguageModel.Invoke, modeled on the
// teacher's provider.GenerateOptions.
type GenerateOptions struct {
	Messages    []ModelMessage
	Temperature *float64
	MaxTokens   *int
	Stop        []string
}

// GenerateResult is the non-streaming result of a language model call.
type GenerateResult struct {
	Text  string
	Usage Usage
}

// StreamChunk is one chunk of a streamed language-model response.
type StreamChunk struct {
	Text  string
	Usage *Usage
}

// LanguageModel is the contract a plugin-registered LLM model satisfies.
type LanguageModel interface {
	Invoke(ctx context.Context, rt RuntimeContext, opts GenerateOptions) (*GenerateResult, error)
	Stream(ctx context.Context, rt RuntimeContext, opts GenerateOptions) (<-chan StreamChunk, <-chan error)
	NumTokens(ctx context.Context, rt RuntimeContext, opts GenerateOptions) (int, error)
}

// EmbeddingModel is the contract a plugin-registered embedding model
// satisfies.
type EmbeddingModel interface {
	Embed(ctx context.Context, rt RuntimeContext, texts []string) ([][]float64, Usage, error)
	NumTokens(ctx context.Context, rt RuntimeContext, texts []string) (int, error)
}

// RerankResult is one scored document from a reranking call.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// RerankingModel is the contract a plugin-registered reranking model
// satisfies, mirroring the teacher's provider.RerankingModel interface.
type RerankingModel interface {
	Rerank(ctx context.Context, rt RuntimeContext, query string, documents []string, topN int) ([]RerankResult, error)
}

// SpeechModel synthesizes audio from text (invoke-tts / get-tts-voices).
type SpeechModel interface {
	Synthesize(ctx context.Context, rt RuntimeContext, text, voice string) ([]byte, error)
	Voices(ctx context.Context, rt RuntimeContext) ([]string, error)
}

// TranscriptionModel converts audio to text (invoke-speech2text).
type TranscriptionModel interface {
	Transcribe(ctx context.Context, rt RuntimeContext, audio []byte, mimeType string) (string, error)
}

// ModerationModel flags unsafe content (invoke-moderation).
type ModerationModel interface {
	Moderate(ctx context.Context, rt RuntimeContext, text string) (flagged bool, err error)
}
