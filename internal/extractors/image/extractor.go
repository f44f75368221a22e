// Package image extracts image documents as image-modality units, with an
// optional OCR pass producing a companion text unit.
package image

import (
	"context"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles image files. The primary unit carries the staged image
// path for the image embedder; when OCR is enabled a second text unit is
// emitted for any text found in the picture.
type Extractor struct {
	ocr driven.OCREngine // nil disables the text pass
}

// New creates an image extractor. ocr may be nil.
func New(ocr driven.OCREngine) *Extractor {
	return &Extractor{ocr: ocr}
}

// Kind returns the media kind this extractor handles.
func (e *Extractor) Kind() domain.MediaKind {
	return domain.KindImage
}

// Extract yields the image unit and, with OCR enabled, a text unit. An OCR
// failure marks only the text unit; the image unit always succeeds.
func (e *Extractor) Extract(ctx context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error) {
	units := make(chan domain.ExtractionUnit, 2)
	go func() {
		defer close(units)

		emit := func(unit domain.ExtractionUnit) bool {
			select {
			case units <- unit:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(domain.ExtractionUnit{
			DocumentID: entry.Digest,
			Index:      0,
			Modality:   domain.ModalityImage,
			ImageRef:   entry.Path,
			Method:     domain.MethodDirect,
		}) {
			return
		}

		if e.ocr == nil {
			return
		}

		unit := domain.ExtractionUnit{
			DocumentID: entry.Digest,
			Index:      1,
			Modality:   domain.ModalityText,
			Method:     domain.MethodOCR,
		}
		text, err := e.ocr.Recognize(ctx, entry.Path)
		text = strings.TrimSpace(text)
		switch {
		case err != nil:
			unit.Failed = true
			unit.Error = "OCR: " + err.Error()
		case text == "":
			// pictures without text are normal; skip the text unit
			return
		default:
			unit.Text = text
		}
		emit(unit)
	}()
	return units, nil
}
