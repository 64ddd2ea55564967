package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = "id, filename, media_type, size, content, extracted, fingerprint, created_at"

// Create stores a new document.
func (s *documentStore) Create(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Filename, doc.MediaType, doc.Size, doc.Content, doc.Extracted, doc.Fingerprint, doc.CreatedAt.UTC())

	switch {
	case isUniqueViolation(err, "documents.fingerprint"):
		return domain.ErrDuplicateContent
	case isUniqueViolation(err, "documents.id"):
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
	case err != nil:
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (s *documentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// FindByFingerprint returns the document whose extracted text has the given fingerprint.
func (s *documentStore) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.Document, error) {
	if fingerprint == "" {
		return nil, domain.ErrNotFound
	}
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE fingerprint = ?`, fingerprint)
	return scanDocument(row)
}

// List returns all documents newest first, without content.
func (s *documentStore) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, filename, media_type, size, '', extracted, fingerprint, created_at
		FROM documents
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Delete removes a document.
func (s *documentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var extracted sql.NullBool

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.MediaType, &doc.Size, &doc.Content,
		&extracted, &doc.Fingerprint, &doc.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Extracted = extracted.Bool

	return &doc, nil
}
