package driven

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// PostProcessor turns a document's extracted text into chunks.
type PostProcessor interface {
	// Name returns the processor identifier.
	Name() string

	// Process splits the document into chunks ready for indexing.
	// Returns domain.ErrExtractionEmpty when the document has no extracted text.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
