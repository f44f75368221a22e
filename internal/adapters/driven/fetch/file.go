package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure FileFetcher implements the interface.
var _ driven.Fetcher = (*FileFetcher)(nil)

// FileFetcher opens local filesystem paths, including file:// URLs.
type FileFetcher struct{}

// NewFile creates a filesystem fetcher.
func NewFile() *FileFetcher {
	return &FileFetcher{}
}

// Supports reports whether the source is a local path or file:// URL.
// It deliberately claims anything without a URL scheme, so it must come
// last in the stager's fetcher order.
func (f *FileFetcher) Supports(source string) bool {
	if strings.HasPrefix(source, "file://") {
		return true
	}
	u, err := url.Parse(source)
	if err != nil {
		return true
	}
	return u.Scheme == ""
}

// Fetch opens the file for streaming.
func (f *FileFetcher) Fetch(_ context.Context, source string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(source, "file://")

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	return os.Open(path)
}
