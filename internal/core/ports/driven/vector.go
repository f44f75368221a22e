package driven

import (
	"context"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// VectorIndex provides durable vector storage and similarity search.
// The on-disk format is a collaborator capability; the core only requires
// upsert/search semantics and that the index persists its dimensionality
// and metric configuration alongside the vectors.
type VectorIndex interface {
	// Upsert inserts or replaces vectors keyed by (DocumentID,
	// UnitIndex). Re-inserting the same key replaces the prior vector
	// without duplicating it and without disturbing its original
	// insertion order for tie-breaking.
	Upsert(ctx context.Context, embeddings []domain.Embedding) error

	// Search finds the k nearest neighbours to the query vector by
	// cosine similarity. Vectors are expected pre-normalised; the store
	// must not renormalise. Results are ordered by descending
	// similarity, ties broken by insertion order (earliest first).
	Search(ctx context.Context, query []float32, opts VectorSearchOptions) ([]VectorHit, error)

	// Delete removes all vectors for a document.
	Delete(ctx context.Context, documentID string) error

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Path returns the index's on-disk file path (used by backup).
	Path() string

	// Close releases resources.
	Close() error
}

// VectorSearchOptions configures a similarity search.
type VectorSearchOptions struct {
	// TopK is the maximum number of hits.
	TopK int

	// Modality restricts hits to one modality. Empty means cross-modal.
	Modality domain.Modality
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// DocumentID is the owning document's content hash.
	DocumentID string

	// UnitIndex is the matched extraction unit's ordinal.
	UnitIndex int

	// Modality is the stored vector's modality tag.
	Modality domain.Modality

	// Similarity is the cosine similarity to the query vector.
	Similarity float64
}
