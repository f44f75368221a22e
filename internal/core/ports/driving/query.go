package driving

import (
	"context"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// QueryService answers similarity queries over the indexed collection.
// Purely read-only; never mutates document status.
type QueryService interface {
	// QueryText answers a text query with ranked results hydrated with
	// document metadata. A quoted phrase (or the "contains"/"phrase"
	// keywords) switches from embedding similarity to literal full-text
	// matching. Only units of documents at StatusIndexed are returned.
	QueryText(ctx context.Context, query string, opts domain.QueryOptions) ([]domain.QueryResult, error)

	// QueryImage embeds an image query (raw bytes) and returns ranked
	// results from the same shared vector space.
	QueryImage(ctx context.Context, image []byte, opts domain.QueryOptions) ([]domain.QueryResult, error)
}
