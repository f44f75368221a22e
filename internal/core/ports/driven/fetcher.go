package driven

import (
	"context"
	"io"
)

// Fetcher streams raw bytes for a source descriptor (URL or local path).
// Implementations handle one transport each; the stager picks the first
// fetcher that supports the descriptor.
type Fetcher interface {
	// Supports reports whether this fetcher can handle the descriptor.
	Supports(source string) bool

	// Fetch opens a byte stream for the descriptor. The caller closes
	// the reader. Transport and IO failures are returned as-is and are
	// wrapped into a domain.StagingFailure by the stager.
	Fetch(ctx context.Context, source string) (io.ReadCloser, error)
}

// OCREngine recovers text from an image or rendered page bitmap.
// Optional collaborator: failures are per-unit and non-fatal to siblings.
type OCREngine interface {
	// Recognize runs OCR over the image file at path and returns the
	// recognised text. Implementations carry their own timeout.
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// CommandRunner executes an external tool and returns its stdout.
// It exists so extractors that shell out (pdftotext, pdftoppm, tesseract)
// can be tested without the binaries installed.
type CommandRunner interface {
	// Run executes name with args and returns combined stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ArchiveExtractor expands archive inputs so each member file can be
// processed as its own document.
type ArchiveExtractor interface {
	// IsArchive reports whether the file at path is a supported archive.
	IsArchive(path string) bool

	// Extract expands the archive into destDir and returns the paths of
	// the extracted member files. Entries are streamed to disk in fixed
	// size chunks; large members never fully occupy memory.
	Extract(ctx context.Context, archivePath, destDir string) ([]string, error)
}
