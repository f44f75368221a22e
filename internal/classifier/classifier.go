// Package classifier detects the media kind of staged content.
// Extension matching is the fast first pass; content sniffing of the
// leading bytes covers anything ambiguous.
package classifier

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// sniffLen is how many leading bytes are read for content detection.
// http.DetectContentType never looks at more than 512.
const sniffLen = 512

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".xml": true, ".log": true, ".rst": true, ".yaml": true, ".yml": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
}

// Classifier detects media kinds by extension and, when needed, by
// sniffing file content.
type Classifier struct{}

// New creates a new classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify returns the media kind for the file at path.
//
// Resolution order:
//  1. Extension - instant, no IO beyond stat.
//  2. Content sniffing of the leading bytes.
//  3. KindUnknown if neither strategy produces a match.
func (c *Classifier) Classify(path string) domain.MediaKind {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return domain.KindUnknown
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return domain.KindPDF
	case textExtensions[ext]:
		return domain.KindText
	case imageExtensions[ext]:
		return domain.KindImage
	}

	return c.sniff(path)
}

// sniff reads the leading bytes and matches on the detected content type.
func (c *Classifier) sniff(path string) domain.MediaKind {
	f, err := os.Open(path)
	if err != nil {
		return domain.KindUnknown
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return domain.KindUnknown
	}
	buf = buf[:n]

	// %PDF magic: DetectContentType reports application/pdf too, but the
	// prefix check also catches PDFs with a byte-order mark prepended.
	if bytes.HasPrefix(bytes.TrimLeft(buf, "\xef\xbb\xbf"), []byte("%PDF")) {
		return domain.KindPDF
	}

	mime := http.DetectContentType(buf)
	switch {
	case mime == "application/pdf":
		return domain.KindPDF
	case strings.HasPrefix(mime, "image/"):
		return domain.KindImage
	case strings.HasPrefix(mime, "text/"):
		return domain.KindText
	}

	return domain.KindUnknown
}
