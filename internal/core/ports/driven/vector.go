package driven

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// VectorIndex is the sole mediator between the core and the similarity-search engine.
//
// Implementations connect lazily: the first call validates the engine and
// get-or-creates the collection, later calls reuse it. When the engine cannot
// be reached every method returns an error wrapping domain.ErrIndexUnavailable.
// Each method issues its request once; retries are left to callers.
//
// Similarity is always 1 - cosine distance.
type VectorIndex interface {
	// Upsert stores or replaces the chunk text under key.
	Upsert(ctx context.Context, key, text string, metadata domain.ChunkMetadata) error

	// Query returns up to limit chunks ranked best match first.
	// An empty collection yields an empty slice, not an error.
	Query(ctx context.Context, text string, limit int) ([]domain.RetrievalResult, error)

	// DeleteByDocumentID removes every chunk of a document.
	// Unknown document IDs are a no-op.
	DeleteByDocumentID(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}
