package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// defaultSearchLimit is used when Search is called without a limit.
const defaultSearchLimit = 5

// DocumentService manages uploaded documents and their vector index entries.
type DocumentService struct {
	docStore   driven.DocumentStore
	extractors driven.ExtractorRegistry
	chunker    driven.PostProcessor
	index      driven.VectorIndex
	now        func() time.Time
}

// NewDocumentService creates a new document service.
// The index parameter is optional (can be nil); uploads then store documents
// without indexing them and report a degraded outcome.
func NewDocumentService(
	docStore driven.DocumentStore,
	extractors driven.ExtractorRegistry,
	chunker driven.PostProcessor,
	index driven.VectorIndex,
) *DocumentService {
	return &DocumentService{
		docStore:   docStore,
		extractors: extractors,
		chunker:    chunker,
		index:      index,
		now:        time.Now,
	}
}

// Upload extracts text from a file, rejects duplicates, stores the document
// and indexes its chunks.
//
// Unsupported types are stored without content and are not indexed.
// Index failures leave the document stored and are reported in the result.
func (s *DocumentService) Upload(ctx context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
	logger.Section("Document Upload")

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	mediaType := DetectMediaType(filename, req.MediaType, req.Content)
	logger.Debug("File: %s (%s, %d bytes)", filename, mediaType, len(req.Content))

	doc := &domain.Document{
		ID:        uuid.New().String(),
		Filename:  filename,
		MediaType: mediaType,
		Size:      int64(len(req.Content)),
		CreatedAt: s.now(),
	}

	text, err := s.extractors.Extract(ctx, mediaType, filename, req.Content)
	switch {
	case errors.Is(err, domain.ErrUnsupportedType):
		logger.Info("No extractor for %s, storing without content", mediaType)
	case err != nil:
		logger.Warn("Extraction failed for %s: %v", filename, err)
	case strings.TrimSpace(text) == "":
		logger.Info("No text extracted from %s", filename)
	default:
		doc.Content = text
		doc.Extracted = true
		doc.Fingerprint = domain.Fingerprint(text)
	}

	if doc.Fingerprint != "" {
		existing, err := s.docStore.FindByFingerprint(ctx, doc.Fingerprint)
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: matches %s (%s)", domain.ErrDuplicateContent, existing.Filename, existing.ID)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("check duplicate: %w", err)
		}
	}

	if err := s.docStore.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	logger.Info("Stored document %s", doc.ID)

	result := &driving.UploadResult{
		DocumentID: doc.ID,
		Extracted:  doc.Extracted,
		Indexing:   domain.Skipped(),
	}
	if !doc.Extracted {
		return result, nil
	}

	chunks, err := s.chunker.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	result.ChunkCount = len(chunks)
	result.Indexing = s.indexChunks(ctx, chunks)

	return result, nil
}

// indexChunks upserts chunks in order and stops at the first failure.
func (s *DocumentService) indexChunks(ctx context.Context, chunks []domain.Chunk) domain.Outcome {
	if len(chunks) == 0 {
		return domain.Skipped()
	}
	if s.index == nil {
		logger.Warn("No vector index configured, document not indexed")
		return domain.Degraded(domain.ErrIndexUnavailable)
	}

	for i := range chunks {
		c := &chunks[i]
		if err := s.index.Upsert(ctx, c.Key, c.Content, c.Metadata); err != nil {
			logger.Warn("Indexing stopped at chunk %s: %v", c.Key, err)
			return domain.Degraded(fmt.Errorf("upsert %s: %w", c.Key, err))
		}
	}
	logger.Debug("Indexed %d chunks", len(chunks))
	return domain.OK()
}

// Delete removes a document and its chunks. The document is removed from the
// store even when the index cannot be reached; the outcome reports that case.
func (s *DocumentService) Delete(ctx context.Context, documentID string) (domain.Outcome, error) {
	doc, err := s.docStore.Get(ctx, documentID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("get document %s: %w", documentID, err)
	}

	outcome := domain.Skipped()
	switch {
	case !doc.Extracted:
	case s.index == nil:
		outcome = domain.Degraded(domain.ErrIndexUnavailable)
	default:
		if err := s.index.DeleteByDocumentID(ctx, documentID); err != nil {
			logger.Warn("Could not remove chunks of %s: %v", documentID, err)
			outcome = domain.Degraded(err)
		} else {
			outcome = domain.OK()
		}
	}

	if err := s.docStore.Delete(ctx, documentID); err != nil {
		return outcome, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	logger.Info("Deleted document %s (index: %s)", documentID, outcome)
	return outcome, nil
}

// Get retrieves a document by ID, including its extracted text.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.docStore.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return doc, nil
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.docStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Search returns the chunks most similar to query, each enriched with its document.
func (s *DocumentService) Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	logger.Section("Document Search")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if s.index == nil {
		return nil, domain.ErrIndexUnavailable
	}

	results, err := s.index.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("Query %q: %d hits", query, len(results))

	summaries := make(map[string]*domain.DocumentSummary)
	hits := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, domain.SearchHit{
			RetrievalResult: r,
			Document:        s.summary(ctx, r.Metadata.DocumentID, summaries),
		})
	}
	return hits, nil
}

// summary looks up the parent document once per search.
func (s *DocumentService) summary(
	ctx context.Context, documentID string, cache map[string]*domain.DocumentSummary,
) *domain.DocumentSummary {
	if documentID == "" {
		return nil
	}
	if cached, ok := cache[documentID]; ok {
		return cached
	}

	var summary *domain.DocumentSummary
	doc, err := s.docStore.Get(ctx, documentID)
	if err == nil {
		summary = &domain.DocumentSummary{
			ID:        doc.ID,
			Filename:  doc.Filename,
			MediaType: doc.MediaType,
			CreatedAt: doc.CreatedAt,
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Lookup of document %s failed: %v", documentID, err)
	}
	cache[documentID] = summary
	return summary
}

// DetectMediaType returns declared when set, otherwise guesses from the file
// extension and finally from the content.
func DetectMediaType(filename, declared string, content []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return mt
}
