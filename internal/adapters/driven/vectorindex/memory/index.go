// Package memory provides an in-process vector index. Nothing is persisted.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const engineName = "memory"

type entry struct {
	content   string
	embedding []float32
	metadata  domain.ChunkMetadata
}

// Index keeps embeddings in a map and ranks by exact cosine similarity.
type Index struct {
	mu       sync.RWMutex
	entries  map[string]entry
	embedder driven.EmbeddingService
}

// NewIndex creates an empty in-memory index.
func NewIndex(embedder driven.EmbeddingService) *Index {
	return &Index{
		entries:  make(map[string]entry),
		embedder: embedder,
	}
}

// Upsert embeds text and stores it under key.
func (x *Index) Upsert(ctx context.Context, key, text string, metadata domain.ChunkMetadata) error {
	embedding, err := x.embed(ctx, text)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[key] = entry{content: text, embedding: embedding, metadata: metadata}
	return nil
}

// Query returns up to limit chunks ranked by similarity to text.
func (x *Index) Query(ctx context.Context, text string, limit int) ([]domain.RetrievalResult, error) {
	embedding, err := x.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	results := make([]domain.RetrievalResult, 0, len(x.entries))
	for key, e := range x.entries {
		results = append(results, domain.RetrievalResult{
			Key:        key,
			Content:    e.content,
			Similarity: vectorindex.CosineSimilarity(embedding, e.embedding),
			Metadata:   e.metadata,
		})
	}
	x.mu.RUnlock()

	return vectorindex.Rank(results, limit), nil
}

// DeleteByDocumentID removes every chunk of a document.
func (x *Index) DeleteByDocumentID(_ context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for key, e := range x.entries {
		if e.metadata.DocumentID == documentID {
			delete(x.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if x.embedder == nil {
		return nil, vectorindex.Unavailable(engineName, domain.ErrEmbeddingUnavailable)
	}
	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, vectorindex.Unavailable(engineName, err)
	}
	return embedding, nil
}
