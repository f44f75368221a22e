package domain

import "time"

// MediaKind is the detected media type of an ingested document.
type MediaKind string

const (
	// KindText is a plain-text document.
	KindText MediaKind = "text"

	// KindPDF is a PDF document.
	KindPDF MediaKind = "pdf"

	// KindImage is a raster image.
	KindImage MediaKind = "image"

	// KindUnknown is anything the classifier could not identify.
	KindUnknown MediaKind = "unknown"
)

// Modality is the semantic channel an extraction unit (and its vector)
// belongs to. Text and image vectors live in the same coordinate space,
// so a text query can retrieve image results and vice versa.
type Modality string

const (
	// ModalityText marks text-derived units and vectors.
	ModalityText Modality = "text"

	// ModalityImage marks image-derived units and vectors.
	ModalityImage Modality = "image"
)

// ExtractionMethod records how a unit's payload was obtained.
type ExtractionMethod string

const (
	// MethodDirect means the payload was read straight from the source
	// (plain text file, PDF text layer, raw image bytes).
	MethodDirect ExtractionMethod = "direct"

	// MethodOCR means the payload was recovered by optical character
	// recognition of a rendered bitmap.
	MethodOCR ExtractionMethod = "ocr"
)

// Document represents one ingested input. Its identity is the SHA-256
// hex digest of the original bytes, which doubles as the deduplication key.
type Document struct {
	// ID is the content hash (SHA-256 hex digest of the raw bytes).
	ID string

	// Source is the descriptor the document was ingested from
	// (URL or local path).
	Source string

	// Kind is the detected media kind.
	Kind MediaKind

	// Size is the original byte length.
	Size int64

	// LibraryPath is the location of the archived original inside the
	// library asset tree, relative to the library root.
	LibraryPath string

	// Status is the current pipeline stage.
	Status Status

	// Errors holds per-unit and per-stage failures accumulated during
	// processing. A document can reach StatusIndexed with a non-empty
	// error list as long as at least one unit succeeded.
	Errors []UnitError

	// IngestedAt is when processing first started for this content hash.
	IngestedAt time.Time

	// UpdatedAt is when the document last changed stage.
	UpdatedAt time.Time
}

// ExtractionUnit is one text or image fragment derived from a document,
// e.g. a single PDF page. Units are identified by (DocumentID, Index).
type ExtractionUnit struct {
	// DocumentID is the owning document's content hash.
	DocumentID string

	// Index is the ordinal position within the document (0-based).
	Index int

	// Modality is the semantic channel of the payload.
	Modality Modality

	// Text is the extracted text payload. Empty for image units.
	Text string

	// ImageRef is a library-relative reference to the image payload.
	// Empty for text units.
	ImageRef string

	// Method records how the payload was obtained.
	Method ExtractionMethod

	// Page is the 1-based page number for PDF-derived units, 0 otherwise.
	Page int

	// Failed marks units whose extraction or embedding failed. Failed
	// units are excluded from the vector store but kept in metadata so
	// the failure is visible.
	Failed bool

	// Error is the failure detail when Failed is true.
	Error string
}

// Embedding is a value object pairing a vector with the unit it encodes.
// It has no identity of its own; (DocumentID, UnitIndex) is the key.
type Embedding struct {
	// DocumentID is the owning document's content hash.
	DocumentID string

	// UnitIndex is the extraction unit's ordinal.
	UnitIndex int

	// Modality tags which embedding model produced the vector.
	Modality Modality

	// Vector is the fixed-dimension embedding, expected pre-normalised.
	Vector []float32
}
