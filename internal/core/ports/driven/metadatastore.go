package driven

import (
	"context"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// UnitHit identifies one unit matched by a full-text search.
type UnitHit struct {
	DocumentID string
	UnitIndex  int
}

// MetadataStore persists documents and their extraction units.
// Backed by SQLite for durable structured metadata.
type MetadataStore interface {
	// CreateDocument inserts a new document row. The document's ID is
	// its content hash; inserting an existing hash is an error.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by content hash.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocuments retrieves documents for an ID list, used to hydrate
	// vector search hits. Missing IDs are silently omitted.
	GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error)

	// SaveUnits stores or replaces the extraction units for a document.
	SaveUnits(ctx context.Context, documentID string, units []domain.ExtractionUnit) error

	// GetUnits retrieves all units for a document, ordered by index.
	GetUnits(ctx context.Context, documentID string) ([]domain.ExtractionUnit, error)

	// GetUnit retrieves a single unit by (document, index).
	GetUnit(ctx context.Context, documentID string, index int) (*domain.ExtractionUnit, error)

	// UpdateStatus advances a document's status and replaces its error
	// list. Implementations must reject illegal transitions with
	// domain.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, status domain.Status, unitErrs []domain.UnitError) error

	// Commit atomically writes the document, its full unit set, and the
	// new status in one transaction. Concurrent readers never observe a
	// document with a partial unit set.
	Commit(ctx context.Context, doc *domain.Document, units []domain.ExtractionUnit) error

	// SearchUnits finds units whose content contains the literal phrase,
	// most relevant first, at most limit hits. Serves exact-match queries
	// that bypass the embedding path.
	SearchUnits(ctx context.Context, phrase string, limit int) ([]UnitHit, error)

	// ListByStatus returns documents currently at the given stage.
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Document, error)

	// CountDocuments returns the total number of documents.
	CountDocuments(ctx context.Context) (int, error)

	// DeleteDocument removes a document and its units.
	DeleteDocument(ctx context.Context, id string) error

	// Path returns the store's on-disk file path (used by backup).
	Path() string

	// Close releases resources.
	Close() error
}
