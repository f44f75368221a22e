package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driving"
)

// Ensure Query implements the interface.
var _ driving.QueryService = (*Query)(nil)

// DefaultQueryLimit applies when the caller gives no limit.
const DefaultQueryLimit = 10

// Query answers similarity queries over the indexed collection. Read-only:
// it never takes processing locks and never mutates status.
type Query struct {
	meta          driven.MetadataStore
	vectors       driven.VectorIndex
	textEmbedder  driven.TextEmbedder
	imageEmbedder driven.ImageEmbedder
}

// NewQuery creates the query service. imageEmbedder may be nil; image
// queries then fail with domain.ErrEmbeddingUnavailable.
func NewQuery(meta driven.MetadataStore, vectors driven.VectorIndex, textEmbedder driven.TextEmbedder, imageEmbedder driven.ImageEmbedder) *Query {
	return &Query{
		meta:          meta,
		vectors:       vectors,
		textEmbedder:  textEmbedder,
		imageEmbedder: imageEmbedder,
	}
}

// QueryText answers a text query. Queries that ask for a literal match,
// by quoting a phrase or with the "contains"/"phrase" keywords, run
// against the full-text index; everything else is embedded and ranked by
// cosine similarity.
func (q *Query) QueryText(ctx context.Context, query string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	if phrase, ok := exactPhrase(query); ok {
		return q.exactSearch(ctx, phrase, opts)
	}

	if q.textEmbedder == nil {
		return nil, fmt.Errorf("text query: %w", domain.ErrEmbeddingUnavailable)
	}
	vectors, err := q.textEmbedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: expected 1 vector, got %d", len(vectors))
	}
	return q.search(ctx, vectors[0], opts)
}

// QueryImage embeds the query image and returns ranked results from the
// same shared vector space.
func (q *Query) QueryImage(ctx context.Context, image []byte, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	if q.imageEmbedder == nil {
		return nil, fmt.Errorf("image query: %w", domain.ErrEmbeddingUnavailable)
	}
	vectors, err := q.imageEmbedder.EmbedImages(ctx, [][]byte{image})
	if err != nil {
		return nil, fmt.Errorf("embedding query image: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query image: expected 1 vector, got %d", len(vectors))
	}
	return q.search(ctx, vectors[0], opts)
}

// exactPhrase decides whether a query asks for literal matching and, if
// so, what to match. A quoted substring wins; an unmatched or empty
// quote falls back to semantic search. Without quotes, the words
// "contains" or "phrase" anywhere in the query mark the whole query as
// literal.
func exactPhrase(query string) (string, bool) {
	if i := strings.Index(query, `"`); i >= 0 {
		rest := query[i+1:]
		if j := strings.Index(rest, `"`); j >= 0 {
			if phrase := strings.TrimSpace(rest[:j]); phrase != "" {
				return phrase, true
			}
		}
		return "", false
	}

	lower := strings.ToLower(query)
	if strings.Contains(lower, "contains") || strings.Contains(lower, "phrase") {
		return query, true
	}
	return "", false
}

// exactSearch resolves a literal phrase through the metadata store's
// full-text index. Matches carry a fixed score of 1.0: phrase
// containment is binary and FTS relevance is not comparable to cosine
// similarity.
func (q *Query) exactSearch(ctx context.Context, phrase string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	fetch := limit
	for {
		unitHits, err := q.meta.SearchUnits(ctx, phrase, fetch)
		if err != nil {
			return nil, fmt.Errorf("searching unit text: %w", err)
		}

		hits := make([]driven.VectorHit, 0, len(unitHits))
		for _, hit := range unitHits {
			hits = append(hits, driven.VectorHit{
				DocumentID: hit.DocumentID,
				UnitIndex:  hit.UnitIndex,
				Similarity: 1.0,
			})
		}

		results, err := q.hydrate(ctx, hits)
		if err != nil {
			return nil, err
		}

		if opts.Modality != "" {
			kept := results[:0]
			for _, r := range results {
				if r.Unit.Modality == opts.Modality {
					kept = append(kept, r)
				}
			}
			results = kept
		}

		if len(results) >= limit || len(unitHits) < fetch {
			if len(results) > limit {
				results = results[:limit]
			}
			return results, nil
		}
		fetch *= 2
	}
}

// search runs the vector scan and hydrates hits with metadata, keeping
// only units of documents at StatusIndexed. Hits whose document is still
// mid-commit are overfetched around rather than surfaced.
func (q *Query) search(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	fetch := limit
	for {
		hits, err := q.vectors.Search(ctx, vector, driven.VectorSearchOptions{
			TopK:     fetch,
			Modality: opts.Modality,
		})
		if err != nil {
			return nil, fmt.Errorf("searching vectors: %w", err)
		}

		results, err := q.hydrate(ctx, hits)
		if err != nil {
			return nil, err
		}

		// Fewer hits than requested means the store is exhausted for
		// this modality filter: there is nothing left to overfetch.
		if len(results) >= limit || len(hits) < fetch {
			if len(results) > limit {
				results = results[:limit]
			}
			return results, nil
		}
		fetch *= 2
	}
}

// hydrate joins vector hits with their documents and units, dropping
// anything not fully indexed.
func (q *Query) hydrate(ctx context.Context, hits []driven.VectorHit) ([]domain.QueryResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool)
	for _, hit := range hits {
		if !seen[hit.DocumentID] {
			seen[hit.DocumentID] = true
			ids = append(ids, hit.DocumentID)
		}
	}

	docs, err := q.meta.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating documents: %w", err)
	}
	byID := make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	results := make([]domain.QueryResult, 0, len(hits))
	for _, hit := range hits {
		doc, ok := byID[hit.DocumentID]
		if !ok || doc.Status != domain.StatusIndexed {
			continue
		}
		unit, err := q.meta.GetUnit(ctx, hit.DocumentID, hit.UnitIndex)
		if err != nil {
			// vector without a unit row: mid-commit leftover, skip
			continue
		}
		results = append(results, domain.QueryResult{
			Document: doc,
			Unit:     *unit,
			Score:    hit.Similarity,
		})
	}
	return results, nil
}
