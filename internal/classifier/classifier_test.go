package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// tiny 1x1 PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func TestClassifyByExtension(t *testing.T) {
	dir := t.TempDir()
	c := New()

	tests := []struct {
		name string
		file string
		body []byte
		want domain.MediaKind
	}{
		{"markdown", "notes.md", []byte("# hello"), domain.KindText},
		{"csv", "data.csv", []byte("a,b\n1,2"), domain.KindText},
		{"pdf extension", "doc.pdf", []byte("%PDF-1.7 fake"), domain.KindPDF},
		{"jpeg extension", "photo.JPG", pngBytes, domain.KindImage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.file, tc.body)
			assert.Equal(t, tc.want, c.Classify(path))
		})
	}
}

func TestClassifyBySniffing(t *testing.T) {
	dir := t.TempDir()
	c := New()

	tests := []struct {
		name string
		file string
		body []byte
		want domain.MediaKind
	}{
		{"pdf magic no extension", "download", []byte("%PDF-1.4\n1 0 obj"), domain.KindPDF},
		{"png magic no extension", "blob", pngBytes, domain.KindImage},
		{"plain text no extension", "readme", []byte("just some prose here"), domain.KindText},
		{"binary garbage", "mystery", []byte{0x00, 0x01, 0x02, 0xff, 0xfe}, domain.KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.file, tc.body)
			assert.Equal(t, tc.want, c.Classify(path))
		})
	}
}

func TestClassifyMissingFile(t *testing.T) {
	c := New()
	assert.Equal(t, domain.KindUnknown, c.Classify(filepath.Join(t.TempDir(), "nope.txt")))
}

func TestClassifyDirectory(t *testing.T) {
	c := New()
	assert.Equal(t, domain.KindUnknown, c.Classify(t.TempDir()))
}
