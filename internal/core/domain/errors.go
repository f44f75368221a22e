package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyIndexed indicates the content hash is already fully
	// indexed. Staging short-circuits with this as an idempotent no-op.
	ErrAlreadyIndexed = errors.New("already indexed")

	// ErrInProgress indicates another process call holds the digest lock.
	ErrInProgress = errors.New("processing in progress")

	// ErrUnknownKind indicates the classifier could not identify the
	// media kind.
	ErrUnknownKind = errors.New("unknown media kind")

	// ErrInvalidTransition indicates an illegal status change was
	// attempted (e.g. indexed before embedded).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDimensionMismatch indicates a vector's dimensionality does not
	// match the index configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSnapshotIncomplete indicates a backup snapshot is missing its
	// completion marker. Restore refuses such snapshots.
	ErrSnapshotIncomplete = errors.New("snapshot incomplete")

	// ErrStoreCorrupt indicates a store file failed an integrity check.
	// Surfaced to the operator; there is no automatic recovery.
	ErrStoreCorrupt = errors.New("store corrupt")

	// ErrEmbeddingUnavailable indicates no embedding service is
	// configured for the requested modality.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// StagingFailure wraps a fetch or IO error together with the source
// descriptor it occurred on. No metadata is written before digest
// computation succeeds, so a StagingFailure leaves no partial state.
type StagingFailure struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *StagingFailure) Error() string {
	return fmt.Sprintf("staging %s: %v", e.Source, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *StagingFailure) Unwrap() error {
	return e.Err
}

// ProcessingStage names the pipeline stage a unit error occurred in.
type ProcessingStage string

const (
	// StageExtract covers extraction failures (including OCR).
	StageExtract ProcessingStage = "extract"

	// StageEmbed covers embedding failures.
	StageEmbed ProcessingStage = "embed"

	// StageCommit covers dual-store commit failures.
	StageCommit ProcessingStage = "commit"
)

// UnitError records a per-unit failure. Unit errors are collected on the
// owning document rather than aborting sibling units.
type UnitError struct {
	// UnitIndex is the affected unit's ordinal, or -1 for
	// document-level failures.
	UnitIndex int

	// Stage is where the failure happened.
	Stage ProcessingStage

	// Message is the failure detail.
	Message string
}

// Error implements the error interface.
func (e UnitError) Error() string {
	if e.UnitIndex < 0 {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("unit %d: %s: %s", e.UnitIndex, e.Stage, e.Message)
}
