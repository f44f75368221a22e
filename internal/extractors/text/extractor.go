// Package text extracts plain text documents as a single direct unit.
package text

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text files.
type Extractor struct{}

// New creates a plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the media kind this extractor handles.
func (e *Extractor) Kind() domain.MediaKind {
	return domain.KindText
}

// Extract yields the whole file content as one text unit.
func (e *Extractor) Extract(ctx context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error) {
	content, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	units := make(chan domain.ExtractionUnit, 1)
	go func() {
		defer close(units)

		unit := domain.ExtractionUnit{
			DocumentID: entry.Digest,
			Index:      0,
			Modality:   domain.ModalityText,
			Method:     domain.MethodDirect,
		}
		text := strings.TrimSpace(string(content))
		switch {
		case !utf8.ValidString(text):
			unit.Failed = true
			unit.Error = "content is not valid UTF-8"
		case text == "":
			unit.Failed = true
			unit.Error = "no extractable content"
		default:
			unit.Text = text
		}

		select {
		case units <- unit:
		case <-ctx.Done():
		}
	}()
	return units, nil
}
