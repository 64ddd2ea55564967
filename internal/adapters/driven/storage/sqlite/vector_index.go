package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

const engineName = "sqlite"

// vectorIndex implements driven.VectorIndex with an exact cosine scan
// over the embeddings of one collection.
type vectorIndex struct {
	store      *Store
	collection string
	embedder   driven.EmbeddingService
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert embeds text and stores it under key, replacing any previous row.
func (v *vectorIndex) Upsert(ctx context.Context, key, text string, metadata domain.ChunkMetadata) error {
	embedding, err := v.embed(ctx, text)
	if err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = v.store.db.ExecContext(ctx, `
		INSERT INTO chunk_vectors (key, collection, document_id, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			collection = excluded.collection,
			document_id = excluded.document_id,
			content = excluded.content,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`, key, v.collection, metadata.DocumentID, text, float32SliceToBytes(embedding), string(metadataJSON))
	if err != nil {
		return vectorindex.Unavailable(engineName, err)
	}
	return nil
}

// Query embeds text and ranks every chunk in the collection by cosine similarity.
func (v *vectorIndex) Query(ctx context.Context, text string, limit int) ([]domain.RetrievalResult, error) {
	embedding, err := v.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := v.store.db.QueryContext(ctx,
		"SELECT key, content, embedding, metadata FROM chunk_vectors WHERE collection = ?", v.collection)
	if err != nil {
		return nil, vectorindex.Unavailable(engineName, err)
	}
	defer rows.Close()

	results := make([]domain.RetrievalResult, 0)
	for rows.Next() {
		var (
			result       domain.RetrievalResult
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&result.Key, &result.Content, &blob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &result.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
			}
		}
		result.Similarity = vectorindex.CosineSimilarity(embedding, bytesToFloat32Slice(blob))
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, vectorindex.Unavailable(engineName, err)
	}

	return vectorindex.Rank(results, limit), nil
}

// DeleteByDocumentID removes every chunk of a document.
func (v *vectorIndex) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := v.store.db.ExecContext(ctx,
		"DELETE FROM chunk_vectors WHERE collection = ? AND document_id = ?", v.collection, documentID)
	if err != nil {
		return vectorindex.Unavailable(engineName, err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database.
func (v *vectorIndex) Close() error {
	return nil
}

func (v *vectorIndex) embed(ctx context.Context, text string) ([]float32, error) {
	if v.embedder == nil {
		return nil, vectorindex.Unavailable(engineName, domain.ErrEmbeddingUnavailable)
	}
	embedding, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, vectorindex.Unavailable(engineName, err)
	}
	return embedding, nil
}
