// Package archive expands container files into their member documents so
// each member can be ingested as an independent document.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/logger"
)

// Ensure ZipExtractor implements the interface.
var _ driven.ArchiveExtractor = (*ZipExtractor)(nil)

// maxMemberSize caps a single decompressed member to guard against
// zip bombs.
const maxMemberSize = 1 << 30 // 1 GiB

// ZipExtractor expands zip archives into a flat list of member files.
type ZipExtractor struct{}

// NewZipExtractor creates a zip archive extractor.
func NewZipExtractor() *ZipExtractor {
	return &ZipExtractor{}
}

// IsArchive reports whether the path looks like a zip archive. It checks
// the magic header, not the extension, so staged files keep working after
// the content-addressed rename.
func (z *ZipExtractor) IsArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic[0] == 'P' && magic[1] == 'K' && magic[2] == 0x03 && magic[3] == 0x04
}

// Extract writes every regular member of the archive under destDir and
// returns the member paths. Directory entries and members escaping the
// destination are skipped.
func (z *ZipExtractor) Extract(ctx context.Context, archivePath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}

	var members []string
	for _, member := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if member.FileInfo().IsDir() {
			continue
		}

		dest, err := memberPath(destDir, member.Name)
		if err != nil {
			logger.Debug("Skipping archive member %q: %v", member.Name, err)
			continue
		}

		if err := writeMember(member, dest); err != nil {
			return nil, fmt.Errorf("extracting %q: %w", member.Name, err)
		}
		members = append(members, dest)
	}

	logger.Debug("Extracted %d members from %s", len(members), filepath.Base(archivePath))
	return members, nil
}

// memberPath resolves a member name under destDir, rejecting traversal.
func memberPath(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || cleaned == ".." {
		return "", fmt.Errorf("member path escapes destination")
	}
	return filepath.Join(destDir, cleaned), nil
}

func writeMember(member *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}

	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, io.LimitReader(src, maxMemberSize))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	return err
}
