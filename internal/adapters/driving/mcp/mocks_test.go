package mcp

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
)

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	hits      []domain.SearchHit
	err       error

	lastQuery string
	lastLimit int
}

func (m *mockDocumentService) Upload(_ context.Context, _ driving.UploadRequest) (*driving.UploadResult, error) {
	return nil, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) (domain.Outcome, error) {
	return domain.OK(), m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Search(_ context.Context, query string, limit int) ([]domain.SearchHit, error) {
	m.lastQuery = query
	m.lastLimit = limit
	return m.hits, m.err
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	session *domain.ChatSession
	result  *domain.TurnResult
	models  []domain.ModelInfo
	err     error

	created     []driving.CreateChatRequest
	turnSession string
	turnText    string
	turnOpts    domain.TurnOptions
}

func (m *mockChatService) Create(_ context.Context, req driving.CreateChatRequest) (*domain.ChatSession, error) {
	m.created = append(m.created, req)
	return m.session, m.err
}

func (m *mockChatService) Get(_ context.Context, _ string) (*domain.ChatSession, error) {
	return m.session, m.err
}

func (m *mockChatService) List(_ context.Context) ([]domain.ChatSession, error) {
	return nil, m.err
}

func (m *mockChatService) Update(_ context.Context, _ string, _ domain.ChatUpdate) (*domain.ChatSession, error) {
	return m.session, m.err
}

func (m *mockChatService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockChatService) SendTurn(
	_ context.Context, sessionID, text string, opts domain.TurnOptions,
) (*domain.TurnResult, error) {
	m.turnSession = sessionID
	m.turnText = text
	m.turnOpts = opts
	return m.result, m.err
}

func (m *mockChatService) ListModels(_ context.Context) ([]domain.ModelInfo, error) {
	return m.models, m.err
}
