package domain

// QueryOptions configures a similarity query.
type QueryOptions struct {
	// Limit is the maximum number of results (top-k).
	Limit int

	// Modality restricts results to one modality. Empty means
	// cross-modal: text and image hits compete in the shared space.
	Modality Modality
}

// QueryResult is a single ranked hit, hydrated with document metadata.
type QueryResult struct {
	// Document is the owning document.
	Document Document

	// Unit is the matched extraction unit.
	Unit ExtractionUnit

	// Score is the cosine similarity of the stored vector to the query
	// vector. Vectors are pre-normalised, so scores are reproducible
	// across runs.
	Score float64
}
