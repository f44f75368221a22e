package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range members {
		mw, err := w.Create(name)
		require.NoError(t, err)
		_, err = mw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestZipExtract(t *testing.T) {
	path := writeZip(t, map[string]string{
		"a.txt":        "alpha",
		"nested/b.txt": "beta",
	})
	dest := t.TempDir()

	z := NewZipExtractor()
	require.True(t, z.IsArchive(path))

	members, err := z.Extract(context.Background(), path, dest)
	require.NoError(t, err)
	require.Len(t, members, 2)

	var contents []string
	for _, m := range members {
		b, err := os.ReadFile(m)
		require.NoError(t, err)
		contents = append(contents, string(b))
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, contents)
}

func TestZipExtractRejectsTraversal(t *testing.T) {
	path := writeZip(t, map[string]string{
		"../escape.txt": "nope",
		"ok.txt":        "fine",
	})
	dest := t.TempDir()

	z := NewZipExtractor()
	members, err := z.Extract(context.Background(), path, dest)
	require.NoError(t, err)
	require.Len(t, members, 1, "traversal member skipped")
	assert.Equal(t, filepath.Join(dest, "ok.txt"), members[0])

	_, err = os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestIsArchiveByMagic(t *testing.T) {
	// extension is irrelevant; only the header counts
	zipPath := writeZip(t, map[string]string{"x": "y"})
	renamed := filepath.Join(t.TempDir(), "abcdef0123456789")
	require.NoError(t, os.Rename(zipPath, renamed))

	z := NewZipExtractor()
	assert.True(t, z.IsArchive(renamed))

	plain := filepath.Join(t.TempDir(), "plain.zip")
	require.NoError(t, os.WriteFile(plain, []byte("just text"), 0o600))
	assert.False(t, z.IsArchive(plain))
}
