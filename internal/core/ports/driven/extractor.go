package driven

import (
	"context"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// Extractor turns staged content of one media kind into extraction units.
//
// Extract returns a channel producing a lazy, finite, non-restartable
// sequence: each unit is consumed once and persisted. Per-unit failures
// (e.g. OCR of one PDF page) are delivered in-band as units with Failed
// set, so a failure on one unit never aborts extraction of its siblings.
// The returned error covers failures to open the source at all; the
// channel is closed when extraction finishes or ctx is cancelled.
type Extractor interface {
	// Kind returns the media kind this extractor handles.
	Kind() domain.MediaKind

	// Extract streams extraction units for a staged entry.
	Extract(ctx context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error)
}

// ExtractorRegistry dispatches staged entries to the extractor registered
// for their media kind.
type ExtractorRegistry interface {
	// Extract selects the extractor for entry.Kind and runs it.
	// Returns domain.ErrUnknownKind when no extractor matches.
	Extract(ctx context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error)

	// Register adds an extractor to the registry.
	Register(extractor Extractor)

	// Kinds returns all media kinds that can be extracted.
	Kinds() []domain.MediaKind
}
