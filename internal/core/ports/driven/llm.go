package driven

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// Generator wraps a language-model backend.
//
// Implementations pass roles through verbatim. Callers must normalise
// aliases (human -> user) first since backends only understand
// system, user and assistant.
//
// Transport failures wrap domain.ErrBackendUnavailable. Error payloads or
// non-success statuses from the backend wrap domain.ErrBackendRejected.
//
// Implementations may include:
//   - Ollama (local models)
//   - OpenAI (and compatible servers)
//   - Anthropic (Claude)
type Generator interface {
	// ChatCompletion produces the next assistant message for a conversation.
	ChatCompletion(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (Completion, error)

	// ListModels returns the models the backend offers.
	ListModels(ctx context.Context) ([]domain.ModelInfo, error)

	// ModelName returns the configured default model.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message sent to the backend.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// CompletionOptions configures a chat completion.
// Zero values leave the backend default in place.
type CompletionOptions struct {
	// Model overrides the configured default model.
	Model string

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// TopP is the nucleus sampling threshold.
	TopP float64
}

// Completion is the raw backend reply.
type Completion struct {
	// Content is the generated text, possibly empty.
	Content string

	// Model is the model that produced the reply, when reported.
	Model string
}
