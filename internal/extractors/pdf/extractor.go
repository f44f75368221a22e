// Package pdf extracts PDF documents page by page via the poppler tools,
// with an optional OCR fallback for pages without a text layer.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/command"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates the poppler utilities are not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH (install poppler: 'brew install poppler' or 'apt install poppler-utils')")

// renderDPI is the resolution pdftoppm renders at for OCR fallback.
const renderDPI = "200"

// Extractor handles PDF files. One unit per page; a page with no text
// layer falls back to render-and-OCR when an OCR engine is configured.
type Extractor struct {
	runner driven.CommandRunner
	ocr    driven.OCREngine // nil disables the OCR fallback
}

// New creates a PDF extractor. ocr may be nil.
func New(runner driven.CommandRunner, ocr driven.OCREngine) *Extractor {
	return &Extractor{runner: runner, ocr: ocr}
}

// CheckAvailable verifies pdftotext is installed.
func CheckAvailable() error {
	if err := command.CheckAvailable("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// Kind returns the media kind this extractor handles.
func (e *Extractor) Kind() domain.MediaKind {
	return domain.KindPDF
}

// Extract yields one text unit per page. Page-level failures are delivered
// in-band on the unit; only a document with no readable page count fails
// extraction outright.
func (e *Extractor) Extract(ctx context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error) {
	pages, err := e.pageCount(ctx, entry.Path)
	if err != nil {
		return nil, fmt.Errorf("reading page count: %w", err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	units := make(chan domain.ExtractionUnit)
	go func() {
		defer close(units)
		for page := 1; page <= pages; page++ {
			unit := e.extractPage(ctx, entry, page)
			select {
			case units <- unit:
			case <-ctx.Done():
				return
			}
		}
	}()
	return units, nil
}

// pageCount parses the Pages field from pdfinfo output.
func (e *Extractor) pageCount(ctx context.Context, path string) (int, error) {
	out, err := e.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if value, ok := strings.CutPrefix(line, "Pages:"); ok {
			return strconv.Atoi(strings.TrimSpace(value))
		}
	}
	return 0, fmt.Errorf("pdfinfo output missing page count")
}

func (e *Extractor) extractPage(ctx context.Context, entry *domain.StagingEntry, page int) domain.ExtractionUnit {
	unit := domain.ExtractionUnit{
		DocumentID: entry.Digest,
		Index:      page - 1,
		Modality:   domain.ModalityText,
		Page:       page,
	}

	pageArg := strconv.Itoa(page)
	out, err := e.runner.Run(ctx, "pdftotext", "-q", "-f", pageArg, "-l", pageArg, entry.Path, "-")
	if err != nil {
		unit.Failed = true
		unit.Error = fmt.Sprintf("extracting page %d: %v", page, err)
		return unit
	}

	if text := strings.TrimSpace(string(out)); text != "" {
		unit.Text = text
		unit.Method = domain.MethodDirect
		return unit
	}

	// No text layer on this page. Scanned or redacted content needs OCR.
	if e.ocr == nil {
		unit.Failed = true
		unit.Error = fmt.Sprintf("page %d: no extractable content", page)
		return unit
	}

	text, err := e.ocrPage(ctx, entry.Path, page)
	switch {
	case err != nil:
		unit.Failed = true
		unit.Error = fmt.Sprintf("OCR of page %d: %v", page, err)
	case text == "":
		unit.Failed = true
		unit.Error = fmt.Sprintf("page %d: no extractable content", page)
	default:
		unit.Text = text
		unit.Method = domain.MethodOCR
	}
	return unit
}

// ocrPage renders one page to a bitmap and runs OCR over it.
func (e *Extractor) ocrPage(ctx context.Context, path string, page int) (string, error) {
	dir, err := os.MkdirTemp("", "librarian-render-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	pageArg := strconv.Itoa(page)
	prefix := filepath.Join(dir, "page")
	if _, err := e.runner.Run(ctx, "pdftoppm", "-f", pageArg, "-l", pageArg, "-r", renderDPI, "-png", path, prefix); err != nil {
		return "", err
	}

	// pdftoppm pads the page number in the output name, so glob for it.
	rendered, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(rendered) == 0 {
		return "", fmt.Errorf("page render produced no bitmap")
	}

	logger.Debug("OCR fallback for page %d of %s", page, filepath.Base(path))
	text, err := e.ocr.Recognize(ctx, rendered[0])
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
