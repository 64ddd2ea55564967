package driving

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// ChatService manages chat sessions and runs conversational turns.
type ChatService interface {
	// Create starts a new session. Empty title and model take defaults.
	Create(ctx context.Context, req CreateChatRequest) (*domain.ChatSession, error)

	// Get retrieves a session with its messages.
	Get(ctx context.Context, sessionID string) (*domain.ChatSession, error)

	// List returns sessions, most recently updated first.
	List(ctx context.Context) ([]domain.ChatSession, error)

	// Update changes session settings. History is never modified.
	Update(ctx context.Context, sessionID string, update domain.ChatUpdate) (*domain.ChatSession, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// SendTurn appends a user message, generates the reply and persists both.
	SendTurn(ctx context.Context, sessionID, text string, opts domain.TurnOptions) (*domain.TurnResult, error)

	// ListModels returns the models offered by the generation backend.
	ListModels(ctx context.Context) ([]domain.ModelInfo, error)
}

// CreateChatRequest holds the settings of a new session.
type CreateChatRequest struct {
	Title string
	Model string

	// UseRAG defaults to true when nil.
	UseRAG *bool
}
