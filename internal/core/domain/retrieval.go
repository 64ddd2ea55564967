package domain

import "time"

// RetrievalResult is one ranked hit from the vector index.
type RetrievalResult struct {
	// Key is the chunk key of the hit.
	Key string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Similarity is 1 minus the cosine distance reported by the engine.
	// Higher is closer; the range is [-1, 1].
	Similarity float64 `json:"similarity"`

	// Metadata is the stored chunk metadata. Zero when the engine returned none.
	Metadata ChunkMetadata `json:"metadata"`
}

// RelevantDoc is the caller-facing summary of a retrieval result.
type RelevantDoc struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	Preview    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Similarity float64       `json:"similarity"`
}

// DocumentSummary is the parent document information attached to search hits.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MediaType string    `json:"mimetype"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchHit is a retrieval result enriched with its parent document.
// Document is nil when the parent no longer exists in the store.
type SearchHit struct {
	RetrievalResult
	Document *DocumentSummary `json:"file"`
}
