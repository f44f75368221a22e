// Package stager moves raw inputs into a content-addressed staging area.
// The SHA-256 digest computed while staging becomes the document identity
// and deduplication key, so no metadata is written before the digest is
// known.
package stager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/classifier"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/logger"
)

// copyChunk is the read/write buffer size while streaming a download.
const copyChunk = 64 * 1024

// Stager implements content-addressed staging with dedup short-circuit.
type Stager struct {
	fetchers   []driven.Fetcher
	meta       driven.MetadataStore
	classifier *classifier.Classifier
	dir        string
}

// New creates a stager writing into dir. Fetchers are tried in order;
// the first one whose Supports returns true handles the source.
func New(dir string, meta driven.MetadataStore, fetchers ...driven.Fetcher) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Stager{
		fetchers:   fetchers,
		meta:       meta,
		classifier: classifier.New(),
		dir:        dir,
	}, nil
}

// Dir returns the staging directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage fetches the source, computes its content digest, and places the
// bytes under a digest-keyed staging path.
//
// If a document with that digest already exists at StatusIndexed, Stage
// removes the staged file and short-circuits with domain.ErrAlreadyIndexed,
// returning the entry alongside the error so callers can report the digest:
// calling process twice on identical bytes is an idempotent no-op. A
// document stuck at an earlier stage is returned normally so the caller
// can resume it.
func (s *Stager) Stage(ctx context.Context, source string) (*domain.StagingEntry, error) {
	fetcher := s.pick(source)
	if fetcher == nil {
		return nil, &domain.StagingFailure{Source: source, Err: errors.New("no fetcher supports this source")}
	}

	rc, err := fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, &domain.StagingFailure{Source: source, Err: err}
	}
	defer rc.Close()

	// Stream to a temp file while hashing; only after the digest is
	// known can the file take its content-addressed name.
	tmp, err := os.CreateTemp(s.dir, "staging-*")
	if err != nil {
		return nil, &domain.StagingFailure{Source: source, Err: err}
	}
	tmpPath := tmp.Name()

	hasher := sha256.New()
	size, err := io.CopyBuffer(io.MultiWriter(tmp, hasher), rc, make([]byte, copyChunk))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, &domain.StagingFailure{Source: source, Err: err}
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	final := filepath.Join(s.dir, digest+sourceExt(source))
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return nil, &domain.StagingFailure{Source: source, Err: err}
	}

	entry := &domain.StagingEntry{
		Digest: digest,
		Path:   final,
		Source: source,
		Kind:   s.classifier.Classify(final),
		Size:   size,
	}

	// Dedup short-circuit. Intermediate statuses fall through so an
	// interrupted run can resume.
	existing, err := s.meta.GetDocument(ctx, digest)
	switch {
	case err == nil && existing.Status == domain.StatusIndexed:
		logger.Debug("Duplicate %s (digest %.8s), already indexed", source, digest)
		os.Remove(final)
		return entry, fmt.Errorf("%s: %w", source, domain.ErrAlreadyIndexed)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		os.Remove(final)
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	logger.Debug("Staged %s as %.8s (%s, %d bytes)", source, digest, entry.Kind, size)
	return entry, nil
}

// Remove deletes a staging entry's file. Called after a successful run;
// failed runs keep their staging files for inspection.
func (s *Stager) Remove(entry *domain.StagingEntry) error {
	if entry == nil {
		return nil
	}
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing staging file: %w", err)
	}
	return nil
}

// CleanAll removes every file in the staging directory.
func (s *Stager) CleanAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading staging directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("cleaning staging: %w", err)
		}
	}
	return nil
}

// pick returns the first fetcher that supports the source.
func (s *Stager) pick(source string) driven.Fetcher {
	for _, f := range s.fetchers {
		if f.Supports(source) {
			return f
		}
	}
	return nil
}

// sourceExt extracts a file extension from a source descriptor so staged
// files keep a recognisable suffix for the classifier's fast path.
func sourceExt(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		return strings.ToLower(filepath.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(source))
}
