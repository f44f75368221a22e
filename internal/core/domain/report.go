package domain

// Outcome classifies a single process invocation's result. The CLI maps
// outcomes across all inputs onto its exit status: all succeeded, some
// failed (partial), or nothing was done (fatal).
type Outcome string

const (
	// OutcomeIndexed means the document reached StatusIndexed.
	OutcomeIndexed Outcome = "indexed"

	// OutcomeSkipped means staging short-circuited: the content hash
	// was already indexed.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means the document ended at StatusFailed, or never
	// produced a document at all.
	OutcomeFailed Outcome = "failed"
)

// ProcessReport summarises one input's trip through the pipeline.
type ProcessReport struct {
	// Source is the input descriptor as given by the caller.
	Source string

	// DocumentID is the content hash, when staging got far enough to
	// compute one.
	DocumentID string

	// Outcome is the overall result for this input.
	Outcome Outcome

	// UnitsTotal is the number of extraction units produced.
	UnitsTotal int

	// UnitsIndexed is the number of units whose vectors were committed.
	UnitsIndexed int

	// Errors lists per-unit and per-stage failures. Non-empty even for
	// OutcomeIndexed when some sibling units failed.
	Errors []UnitError
}

// Partial reports whether the document was indexed but with unit failures.
func (r ProcessReport) Partial() bool {
	return r.Outcome == OutcomeIndexed && len(r.Errors) > 0
}
