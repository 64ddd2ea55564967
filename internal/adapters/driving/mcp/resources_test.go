package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists documents as json", func(t *testing.T) {
		docs := &mockDocumentService{documents: []domain.Document{
			{ID: "d1", Filename: "a.txt", MediaType: "text/plain", Size: 12, Extracted: true,
				CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "d2", Filename: "b.png", MediaType: "image/png"},
		}}
		server := newTestServer(t, docs, nil)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docuchat://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "d1", decoded[0]["id"])
		assert.Equal(t, true, decoded[0]["extracted"])
		assert.Equal(t, false, decoded[1]["extracted"])
	})

	t.Run("empty list", func(t *testing.T) {
		server := newTestServer(t, &mockDocumentService{documents: []domain.Document{}}, nil)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docuchat://documents"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("store error", func(t *testing.T) {
		boom := errors.New("db closed")
		server := newTestServer(t, &mockDocumentService{err: boom}, nil)

		_, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docuchat://documents"))

		assert.ErrorIs(t, err, boom)
	})
}

func TestServer_handleDocumentContentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns extracted text", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{ID: "d1", Content: "hello", Extracted: true}}
		server := newTestServer(t, docs, nil)

		result, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docuchat://documents/d1"))

		require.NoError(t, err)
		assert.Equal(t, "hello", result.Contents[0].Text)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
	})

	t.Run("document without content", func(t *testing.T) {
		docs := &mockDocumentService{document: &domain.Document{ID: "d2"}}
		server := newTestServer(t, docs, nil)

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docuchat://documents/d2"))

		assert.ErrorIs(t, err, domain.ErrExtractionEmpty)
	})

	t.Run("unknown document", func(t *testing.T) {
		server := newTestServer(t, &mockDocumentService{err: domain.ErrNotFound}, nil)

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docuchat://documents/nope"))

		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrExtractionEmpty)
	})

	t.Run("malformed uri", func(t *testing.T) {
		server := newTestServer(t, &mockDocumentService{}, nil)

		_, err := server.handleDocumentContentResource(ctx, makeReadResourceRequest("docuchat://other/d1"))

		assert.Error(t, err)
	})
}

func TestServer_handleChatResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns transcript", func(t *testing.T) {
		chat := &mockChatService{session: &domain.ChatSession{
			ID:       "s1",
			Title:    "Notes",
			Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
		}}
		server := newTestServer(t, &mockDocumentService{}, chat)

		result, err := server.handleChatResource(ctx, makeReadResourceRequest("docuchat://chats/s1"))

		require.NoError(t, err)
		var decoded domain.ChatSession
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &decoded))
		assert.Equal(t, "s1", decoded.ID)
		require.Len(t, decoded.Messages, 1)
		assert.Equal(t, "hi", decoded.Messages[0].Content)
	})

	t.Run("without chat service", func(t *testing.T) {
		server := newTestServer(t, &mockDocumentService{}, nil)

		_, err := server.handleChatResource(ctx, makeReadResourceRequest("docuchat://chats/s1"))

		assert.Error(t, err)
	})
}

func TestTrimID(t *testing.T) {
	tests := []struct {
		uri  string
		kind string
		want string
	}{
		{"docuchat://documents/abc", "documents/", "abc"},
		{"docuchat://documents/", "documents/", ""},
		{"docuchat://documents/a/b", "documents/", ""},
		{"other://documents/abc", "documents/", ""},
		{"docuchat://chats/s-1", "chats/", "s-1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trimID(tt.uri, tt.kind), tt.uri)
	}
}
