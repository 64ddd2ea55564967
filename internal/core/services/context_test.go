package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

func TestAssembleContext_EmptyResults(t *testing.T) {
	msg, docs := AssembleContext("what is go?", nil)

	assert.Nil(t, msg)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestAssembleContext_OrderAndLabels(t *testing.T) {
	results := []domain.RetrievalResult{
		{
			Key:        "doc-1_0",
			Content:    "  Go was designed at Google.  ",
			Similarity: 0.91,
			Metadata:   domain.ChunkMetadata{DocumentID: "doc-1", Filename: "go.txt"},
		},
		{
			Key:        "doc-2_3",
			Content:    "Channels connect goroutines.",
			Similarity: 0.75,
		},
	}

	msg, docs := AssembleContext("Who designed Go?", results)

	require.NotNil(t, msg)
	assert.Equal(t, "system", msg.Role)

	directive := strings.Index(msg.Content, "only using the documents provided below")
	first := strings.Index(msg.Content, "### Document: **go.txt**")
	second := strings.Index(msg.Content, "### Document: **Document 2**")
	query := strings.Index(msg.Content, "User Query:\nWho designed Go?")
	assert.Equal(t, 0, strings.Index(msg.Content, "You are a helpful assistant."))
	assert.Greater(t, directive, -1)
	assert.Greater(t, first, directive)
	assert.Greater(t, second, first)
	assert.Greater(t, query, second)
	assert.Contains(t, msg.Content, "I don't know based on the provided documents")
	assert.Contains(t, msg.Content, "**Content:**\nGo was designed at Google.\n---")

	require.Len(t, docs, 2)
	assert.Equal(t, "doc-1_0", docs[0].ID)
	assert.Equal(t, "go.txt", docs[0].Label)
	assert.Equal(t, "Go was designed at Google.", docs[0].Preview)
	assert.InDelta(t, 0.91, docs[0].Similarity, 1e-9)
	assert.Equal(t, "doc-1", docs[0].Metadata.DocumentID)
	assert.Equal(t, "Document 2", docs[1].Label)
}

func TestAssembleContext_PreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 301)
	exact := strings.Repeat("b", 300)

	_, docs := AssembleContext("q", []domain.RetrievalResult{
		{Key: "k1", Content: long},
		{Key: "k2", Content: exact},
	})

	require.Len(t, docs, 2)
	assert.Equal(t, strings.Repeat("a", 300)+"...", docs[0].Preview)
	assert.Equal(t, exact, docs[1].Preview)
}

func TestAssembleContext_PreviewCountsRunes(t *testing.T) {
	text := strings.Repeat("ü", 301)

	_, docs := AssembleContext("q", []domain.RetrievalResult{{Key: "k", Content: text}})

	require.Len(t, docs, 1)
	assert.Equal(t, strings.Repeat("ü", 300)+"...", docs[0].Preview)
}

func TestAssembleContext_FullContentInPrompt(t *testing.T) {
	long := strings.Repeat("x", 500)

	msg, _ := AssembleContext("q", []domain.RetrievalResult{{Key: "k", Content: long}})

	require.NotNil(t, msg)
	assert.Contains(t, msg.Content, long)
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single span", "<think>reasoning</think>\n\nAnswer.", "Answer."},
		{"multiline span", "<think>line one\nline two\n</think>Answer here.", "Answer here."},
		{"case insensitive", "<THINK>hmm</Think> Yes.", "Yes."},
		{"leading whitespace", "  \n<think>x</think> ok", "ok"},
		{"multiple spans non-greedy", "<think>a</think>keep<think>b</think> end", "keep end"},
		{"no think prefix untouched", "Answer <think>not stripped</think>", "Answer <think>not stripped</think>"},
		{"plain text untouched", "  plain  ", "  plain  "},
		{"only reasoning", "<think>all thought</think>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.in))
		})
	}
}
