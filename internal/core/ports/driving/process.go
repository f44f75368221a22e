package driving

import (
	"context"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// Processor drives the ingestion pipeline: stage, dedup, extract, embed,
// and atomically commit across both stores.
type Processor interface {
	// Process runs the full pipeline for one source descriptor and
	// returns a report for it. Archive inputs yield one report per
	// member file, so the slice can be longer than one.
	//
	// Re-invoking Process on content that is already indexed is an
	// idempotent no-op (OutcomeSkipped). Re-invoking on content stuck
	// at an intermediate stage resumes from the last durable stage.
	// Cancelling ctx between stages leaves the document at its last
	// durable stage, retryable later.
	Process(ctx context.Context, source string) ([]domain.ProcessReport, error)

	// CleanStaging removes staging leftovers from failed runs.
	CleanStaging(ctx context.Context) error
}

// ProcessStatus describes an in-flight process call for one digest.
type ProcessStatus struct {
	// Digest is the content hash being processed.
	Digest string

	// Stage is the last stage the document reached.
	Stage domain.Status
}
