package driving

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// DocumentService manages uploaded documents and their index entries.
type DocumentService interface {
	// Upload extracts, fingerprints, stores and indexes a file.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Delete removes a document and all of its chunks from the index.
	// Index failures are reported in the outcome, not as an error.
	Delete(ctx context.Context, documentID string) (domain.Outcome, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns all documents.
	List(ctx context.Context) ([]domain.Document, error)

	// Search returns the chunks most similar to query, enriched with their documents.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
}

// UploadRequest is a file handed to the document service.
type UploadRequest struct {
	// Filename is the original file name.
	Filename string

	// MediaType is the MIME type. Detected from content when empty.
	MediaType string

	// Content is the raw file bytes.
	Content []byte
}

// UploadResult summarises a completed upload.
type UploadResult struct {
	// DocumentID identifies the stored document.
	DocumentID string

	// ChunkCount is the number of chunks the text was split into.
	ChunkCount int

	// Extracted is false when the media type is unsupported or extraction failed.
	Extracted bool

	// Indexing reports how storing chunks in the vector index went.
	Indexing domain.Outcome
}
