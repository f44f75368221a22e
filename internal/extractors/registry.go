// Package extractors provides the media-kind dispatch registry for
// extraction. Concrete extractors live in subpackages.
package extractors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps media kinds to their extractors.
type Registry struct {
	extractors map[domain.MediaKind]driven.Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.MediaKind]driven.Extractor),
	}
}

// Register adds an extractor, replacing any previous one for its kind.
func (r *Registry) Register(extractor driven.Extractor) {
	r.extractors[extractor.Kind()] = extractor
}

// Extract dispatches the entry to the extractor for its media kind.
func (r *Registry) Extract(ctx context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error) {
	extractor, ok := r.extractors[entry.Kind]
	if !ok {
		return nil, fmt.Errorf("media kind %q: %w", entry.Kind, domain.ErrUnknownKind)
	}
	return extractor.Extract(ctx, entry)
}

// Kinds returns all media kinds with a registered extractor.
func (r *Registry) Kinds() []domain.MediaKind {
	kinds := make([]domain.MediaKind, 0, len(r.extractors))
	for kind := range r.extractors {
		kinds = append(kinds, kind)
	}
	return kinds
}
