package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// previewLength is the number of characters kept in a relevant document preview.
const previewLength = 300

// groundingDirective opens every context message.
const groundingDirective = "You are a helpful assistant. Answer the user's question only using the documents provided below.\n\n" +
	"Instructions:\n" +
	"- Be concise and factual.\n" +
	"- If the answer is not contained in the documents, reply \"I don't know based on the provided documents\"."

// AssembleContext builds the system message that grounds a turn in retrieved
// chunks, and the caller-facing summaries of those chunks.
// Results must already be in rank order. When results is empty no context
// message is produced and the returned slice is empty.
func AssembleContext(query string, results []domain.RetrievalResult) (*driven.ChatMessage, []domain.RelevantDoc) {
	docs := make([]domain.RelevantDoc, 0, len(results))
	if len(results) == 0 {
		return nil, docs
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		label := documentLabel(r, i)
		content := strings.TrimSpace(r.Content)

		blocks = append(blocks, fmt.Sprintf("### Document: **%s**\n---\n**Content:**\n%s\n---", label, content))
		docs = append(docs, domain.RelevantDoc{
			ID:         r.Key,
			Label:      label,
			Preview:    preview(content),
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}

	var b strings.Builder
	b.WriteString(groundingDirective)
	b.WriteString("\n\nRelevant Documents:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nUser Query:\n")
	b.WriteString(query)

	return &driven.ChatMessage{
		Role:    domain.RoleSystem.String(),
		Content: b.String(),
	}, docs
}

// documentLabel is the filename from metadata, or "Document N" (1-based).
func documentLabel(r domain.RetrievalResult, index int) string {
	if name := strings.TrimSpace(r.Metadata.Filename); name != "" {
		return name
	}
	return fmt.Sprintf("Document %d", index+1)
}

// preview truncates s to previewLength characters, marking truncation with "...".
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength]) + "..."
}

var (
	thinkPrefix = regexp.MustCompile(`(?i)^\s*<think>`)
	thinkSpan   = regexp.MustCompile(`(?is)<think>.*?</think>`)
)

// StripReasoning removes <think>...</think> spans emitted by reasoning models.
// Output that does not start with <think> is returned unchanged.
func StripReasoning(content string) string {
	if !thinkPrefix.MatchString(content) {
		return content
	}
	return strings.TrimSpace(thinkSpan.ReplaceAllString(content, ""))
}
