package driven

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// DocumentStore persists uploaded documents.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// Create stores a new document. Returns domain.ErrDuplicateContent when a
	// document with the same non-empty fingerprint already exists.
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// FindByFingerprint returns the document with the given fingerprint.
	// Returns domain.ErrNotFound if none matches.
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.Document, error)

	// List returns all documents, newest first. Content is omitted.
	List(ctx context.Context) ([]domain.Document, error)

	// Delete removes a document. Missing documents are not an error.
	Delete(ctx context.Context, id string) error
}
