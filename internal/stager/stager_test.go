package stager

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// stubFetcher serves fixed content for any source, or fails if err is set.
type stubFetcher struct {
	content []byte
	err     error
}

func (f *stubFetcher) Supports(string) bool { return true }

func (f *stubFetcher) Fetch(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func TestStageDigestNaming(t *testing.T) {
	dir := t.TempDir()
	meta := memory.NewMetadataStore()
	content := []byte("hello librarian")
	s, err := New(dir, meta, &stubFetcher{content: content})
	require.NoError(t, err)

	entry, err := s.Stage(context.Background(), "/somewhere/notes.txt")
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	wantDigest := hex.EncodeToString(sum[:])
	assert.Equal(t, wantDigest, entry.Digest)
	assert.Equal(t, filepath.Join(dir, wantDigest+".txt"), entry.Path)
	assert.Equal(t, domain.KindText, entry.Kind)
	assert.Equal(t, int64(len(content)), entry.Size)

	got, err := os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestStageURLExtension(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, memory.NewMetadataStore(), &stubFetcher{content: []byte("x")})
	require.NoError(t, err)

	entry, err := s.Stage(context.Background(), "https://example.com/papers/report.txt?version=2")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(entry.Path, ".txt"), "query string must not leak into the extension")
}

func TestStageDedupShortCircuit(t *testing.T) {
	dir := t.TempDir()
	meta := memory.NewMetadataStore()
	content := []byte("same bytes")
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	require.NoError(t, meta.CreateDocument(context.Background(), &domain.Document{
		ID:     digest,
		Status: domain.StatusIndexed,
	}))

	s, err := New(dir, meta, &stubFetcher{content: content})
	require.NoError(t, err)

	entry, err := s.Stage(context.Background(), "/tmp/dup.txt")
	assert.ErrorIs(t, err, domain.ErrAlreadyIndexed)
	require.NotNil(t, entry, "entry accompanies the error so callers can report the digest")
	assert.Equal(t, digest, entry.Digest)

	// the duplicate's staging file is removed again
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageResumableStatusFallsThrough(t *testing.T) {
	dir := t.TempDir()
	meta := memory.NewMetadataStore()
	content := []byte("partially processed")
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	require.NoError(t, meta.CreateDocument(context.Background(), &domain.Document{
		ID:     digest,
		Status: domain.StatusEmbedded,
	}))

	s, err := New(dir, meta, &stubFetcher{content: content})
	require.NoError(t, err)

	entry, err := s.Stage(context.Background(), "/tmp/resume.txt")
	require.NoError(t, err, "non-indexed documents must be stageable for resume")
	assert.Equal(t, digest, entry.Digest)
}

func TestStageFetchFailure(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("connection refused")
	s, err := New(dir, memory.NewMetadataStore(), &stubFetcher{err: boom})
	require.NoError(t, err)

	_, err = s.Stage(context.Background(), "https://example.com/gone.pdf")
	require.Error(t, err)

	var sf *domain.StagingFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "https://example.com/gone.pdf", sf.Source)
	assert.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed fetches leave nothing behind")
}

func TestStageNoFetcher(t *testing.T) {
	s, err := New(t.TempDir(), memory.NewMetadataStore())
	require.NoError(t, err)

	_, err = s.Stage(context.Background(), "/anything")
	var sf *domain.StagingFailure
	require.ErrorAs(t, err, &sf)
}

func TestRemoveAndCleanAll(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, memory.NewMetadataStore(), &stubFetcher{content: []byte("a")})
	require.NoError(t, err)

	entry, err := s.Stage(context.Background(), "/tmp/a.txt")
	require.NoError(t, err)
	require.NoError(t, s.Remove(entry))
	require.NoError(t, s.Remove(entry), "double remove is fine")
	require.NoError(t, s.Remove(nil))

	_, err = s.Stage(context.Background(), "/tmp/a.txt")
	require.NoError(t, err)
	require.NoError(t, s.CleanAll())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
