package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherSupports(t *testing.T) {
	f := NewHTTP(HTTPConfig{})
	assert.True(t, f.Supports("https://example.com/doc.pdf"))
	assert.True(t, f.Supports("http://example.com/doc.pdf"))
	assert.False(t, f.Supports("/local/path.txt"))
	assert.False(t, f.Supports("file:///local/path.txt"))
}

func TestHTTPFetcherStreams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("document body"))
	}))
	defer server.Close()

	f := NewHTTP(HTTPConfig{RequestsPerSecond: 100})
	rc, err := f.Fetch(context.Background(), server.URL+"/doc.txt")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "document body", string(body))
}

func TestHTTPFetcherNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTP(HTTPConfig{RequestsPerSecond: 100})
	_, err := f.Fetch(context.Background(), server.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("local bytes"), 0o600))

	f := NewFile()
	assert.True(t, f.Supports(path))
	assert.True(t, f.Supports("file://"+path))
	assert.False(t, f.Supports("https://example.com"))

	rc, err := f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "local bytes", string(body))
}

func TestFileFetcherDirectory(t *testing.T) {
	_, err := NewFile().Fetch(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "directory")
}

func TestFileFetcherMissing(t *testing.T) {
	_, err := NewFile().Fetch(context.Background(), "/nope/missing.txt")
	assert.Error(t, err)
}
