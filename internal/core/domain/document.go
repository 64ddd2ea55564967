package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Document is an uploaded file together with its extracted text.
// Documents are immutable once stored.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the name the file was uploaded with.
	Filename string

	// MediaType is the MIME type reported at upload.
	MediaType string

	// Size is the raw file size in bytes.
	Size int64

	// Content is the extracted text. Only meaningful when Extracted is true.
	Content string

	// Extracted is false when text extraction failed or the type is unsupported.
	Extracted bool

	// Fingerprint is the hex SHA-256 of Content, empty when nothing was extracted.
	Fingerprint string

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time
}

// HasContent reports whether the document carries extracted text.
func (d *Document) HasContent() bool {
	return d != nil && d.Extracted
}

// Fingerprint returns the hex-encoded SHA-256 digest of extracted text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkMetadata is stored alongside every chunk in the vector index.
// It lets a search hit be re-associated with its parent document.
type ChunkMetadata struct {
	DocumentID    string `json:"documentId"`
	Filename      string `json:"filename"`
	MediaType     string `json:"mediaType"`
	SequenceIndex int    `json:"sequenceIndex"`
	TotalChunks   int    `json:"totalChunks"`
	Fingerprint   string `json:"fingerprint"`
}

// Chunk is a bounded span of a document's text.
// Chunks live only in the vector index and are owned by their document.
type Chunk struct {
	// Key is the vector index primary key, see ChunkKey.
	Key string

	// Content is the chunk text.
	Content string

	// Metadata links the chunk to its document.
	Metadata ChunkMetadata
}

// ChunkKey builds the composite key {documentID}_{sequenceIndex}.
func ChunkKey(documentID string, sequenceIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, sequenceIndex)
}

// ChunkKeyPrefix returns the prefix shared by every chunk of a document.
func ChunkKeyPrefix(documentID string) string {
	return documentID + "_"
}

// NewChunks wraps split text into chunks of the given document.
func NewChunks(doc *Document, texts []string) []Chunk {
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			Key:     ChunkKey(doc.ID, i),
			Content: text,
			Metadata: ChunkMetadata{
				DocumentID:    doc.ID,
				Filename:      doc.Filename,
				MediaType:     doc.MediaType,
				SequenceIndex: i,
				TotalChunks:   len(texts),
				Fingerprint:   doc.Fingerprint,
			},
		}
	}
	return chunks
}
