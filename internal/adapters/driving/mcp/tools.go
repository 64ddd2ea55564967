package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
)

// defaultSearchLimit applies when a search omits its limit.
const defaultSearchLimit = 5

// SearchInput is the input schema for the search_documents tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the text to find similar passages for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages to return (default 5)"`
}

// SearchOutput is the output schema for the search_documents tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one matching passage.
type SearchResultOutput struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	Filename      string  `json:"filename,omitempty"`
	MediaType     string  `json:"media_type,omitempty"`
	SequenceIndex int     `json:"sequence_index"`
	Similarity    float64 `json:"similarity"`
	Content       string  `json:"content"`
}

// CreateSessionInput is the input schema for the create_session tool.
type CreateSessionInput struct {
	Title  string `json:"title,omitempty" jsonschema:"session title"`
	Model  string `json:"model,omitempty" jsonschema:"model to answer with"`
	UseRAG *bool  `json:"use_rag,omitempty" jsonschema:"ground answers in uploaded documents (default true)"`
}

// SessionOutput describes a chat session.
type SessionOutput struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	UseRAG    bool   `json:"use_rag"`
	Messages  int    `json:"messages"`
	UpdatedAt string `json:"updated_at"`
}

// SendTurnInput is the input schema for the send_turn tool.
type SendTurnInput struct {
	SessionID   string   `json:"session_id,omitempty" jsonschema:"session to continue; a new session is created when empty"`
	Message     string   `json:"message" jsonschema:"the user message"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature; 0 is allowed"`
	MaxTokens   int      `json:"max_tokens,omitempty" jsonschema:"maximum tokens in the reply"`
	MaxResults  int      `json:"max_results,omitempty" jsonschema:"number of passages to retrieve"`
}

// SendTurnOutput is the output schema for the send_turn tool.
type SendTurnOutput struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply"`
	Sources   []SourceReference `json:"sources"`
	Degraded  string            `json:"degraded,omitempty"`
}

// SourceReference is a passage used to ground a reply.
type SourceReference struct {
	ChunkID    string  `json:"chunk_id"`
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
}

// ListModelsInput is the (empty) input schema for the list_models tool.
type ListModelsInput struct{}

// ListModelsOutput is the output schema for the list_models tool.
type ListModelsOutput struct {
	Models []ModelOutput `json:"models"`
}

// ModelOutput describes one model.
type ModelOutput struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Find the passages in uploaded documents most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_session",
		Description: "Start a chat session",
	}, s.handleCreateSession)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "send_turn",
		Description: "Send a message to a chat session and get an answer grounded in uploaded documents",
	}, s.handleSendTurn)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_models",
		Description: "List the models offered by the generation backend",
	}, s.handleListModels)
}

// handleSearch handles the search_documents tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := s.ports.Document.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(hits)),
		Count:   len(hits),
	}
	for i := range hits {
		out := SearchResultOutput{
			ChunkID:       hits[i].Key,
			DocumentID:    hits[i].Metadata.DocumentID,
			Filename:      hits[i].Metadata.Filename,
			MediaType:     hits[i].Metadata.MediaType,
			SequenceIndex: hits[i].Metadata.SequenceIndex,
			Similarity:    hits[i].Similarity,
			Content:       hits[i].Content,
		}
		if doc := hits[i].Document; doc != nil {
			out.DocumentID = doc.ID
			out.Filename = doc.Filename
			out.MediaType = doc.MediaType
		}
		output.Results[i] = out
	}

	return nil, output, nil
}

// handleCreateSession handles the create_session tool invocation.
func (s *Server) handleCreateSession(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CreateSessionInput,
) (*mcp.CallToolResult, SessionOutput, error) {
	if s.ports.Chat == nil {
		return nil, SessionOutput{}, ErrChatUnavailable
	}

	session, err := s.ports.Chat.Create(ctx, driving.CreateChatRequest{
		Title:  input.Title,
		Model:  input.Model,
		UseRAG: input.UseRAG,
	})
	if err != nil {
		return nil, SessionOutput{}, err
	}
	return nil, sessionOutput(session), nil
}

// handleSendTurn handles the send_turn tool invocation.
func (s *Server) handleSendTurn(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SendTurnInput,
) (*mcp.CallToolResult, SendTurnOutput, error) {
	if s.ports.Chat == nil {
		return nil, SendTurnOutput{}, ErrChatUnavailable
	}

	sessionID := input.SessionID
	if sessionID == "" {
		session, err := s.ports.Chat.Create(ctx, driving.CreateChatRequest{})
		if err != nil {
			return nil, SendTurnOutput{}, err
		}
		sessionID = session.ID
	}

	result, err := s.ports.Chat.SendTurn(ctx, sessionID, input.Message, domain.TurnOptions{
		Temperature: input.Temperature,
		MaxTokens:   input.MaxTokens,
		MaxResults:  input.MaxResults,
	})
	if err != nil {
		return nil, SendTurnOutput{}, err
	}

	output := SendTurnOutput{
		SessionID: sessionID,
		Reply:     result.Message.Content,
		Sources:   make([]SourceReference, len(result.RelevantDocs)),
	}
	for i, d := range result.RelevantDocs {
		output.Sources[i] = SourceReference{ChunkID: d.ID, Label: d.Label, Similarity: d.Similarity}
	}
	if result.Retrieval.IsDegraded() {
		output.Degraded = result.Retrieval.String()
	}
	return nil, output, nil
}

// handleListModels handles the list_models tool invocation.
func (s *Server) handleListModels(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListModelsInput,
) (*mcp.CallToolResult, ListModelsOutput, error) {
	if s.ports.Chat == nil {
		return nil, ListModelsOutput{}, ErrChatUnavailable
	}

	models, err := s.ports.Chat.ListModels(ctx)
	if err != nil {
		return nil, ListModelsOutput{}, err
	}
	output := ListModelsOutput{Models: make([]ModelOutput, len(models))}
	for i, m := range models {
		output.Models[i] = ModelOutput{Name: m.Name, Size: m.Size}
		if !m.ModifiedAt.IsZero() {
			output.Models[i].ModifiedAt = m.ModifiedAt.UTC().Format(time.RFC3339)
		}
	}
	return nil, output, nil
}

func sessionOutput(session *domain.ChatSession) SessionOutput {
	return SessionOutput{
		SessionID: session.ID,
		Title:     session.Title,
		Model:     session.Model,
		UseRAG:    session.UseRAG,
		Messages:  len(session.Messages),
		UpdatedAt: session.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
