// Package backup snapshots and restores the two store files and the
// library asset tree as one consistent unit.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driving"
	"github.com/custodia-labs/librarian-cli/internal/logger"
)

// Ensure Manager implements the interface.
var _ driving.BackupService = (*Manager)(nil)

const (
	// snapshotPrefix names snapshot directories.
	snapshotPrefix = "backup_"

	// timeLayout keeps directory names lexically sortable by age.
	timeLayout = "20060102T150405"

	// markerFile is the terminal completion marker. Written last; a
	// snapshot without it is treated as garbage from an interrupted run.
	markerFile = "COMPLETE"

	// manifestFile records what the snapshot contains.
	manifestFile = "manifest.toml"

	// librarySubdir holds the copied library tree inside a snapshot.
	librarySubdir = "library"
)

// manifest is the TOML document written into each snapshot.
type manifest struct {
	Name      string    `toml:"name"`
	CreatedAt time.Time `toml:"created_at"`
	Documents int       `toml:"documents"`
	Vectors   int       `toml:"vectors"`
	Files     []string  `toml:"files"`
}

// Config holds the backup manager's collaborators.
type Config struct {
	// BackupRoot is where snapshot directories are created.
	BackupRoot string

	// LibraryDir is the live library tree; may not exist yet.
	LibraryDir string

	// Meta and Vectors are the live stores. Their Path() locates the
	// files to copy; counts fill the manifest.
	Meta    driven.MetadataStore
	Vectors driven.VectorIndex

	// Gate is the orchestrator's commit lock, held exclusively while
	// the store files are copied so no commit splits across them.
	// Optional for restore-only use.
	Gate *sync.RWMutex
}

// Manager implements filesystem snapshots of both stores.
type Manager struct {
	cfg Config
}

// NewManager creates a backup manager.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Backup takes a consistent snapshot. The commit gate is held only for
// the copy phase; manifest and marker writes happen after it is released.
func (m *Manager) Backup(ctx context.Context) (*domain.Snapshot, error) {
	now := time.Now().UTC()
	name := fmt.Sprintf("%s%s_%s", snapshotPrefix, now.Format(timeLayout), uuid.NewString()[:8])
	dir := filepath.Join(m.cfg.BackupRoot, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	files, err := m.copyPhase(ctx, dir)
	if err != nil {
		return nil, err
	}

	docCount, err := m.cfg.Meta.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	vecCount, err := m.cfg.Vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting vectors: %w", err)
	}

	man := manifest{
		Name:      name,
		CreatedAt: now,
		Documents: docCount,
		Vectors:   vecCount,
		Files:     files,
	}
	data, err := toml.Marshal(man)
	if err != nil {
		return nil, fmt.Errorf("marshalling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o600); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	// The marker is last. Anything before a crash leaves an unmarked,
	// unrestorable directory instead of a corrupt "valid" one.
	if err := os.WriteFile(filepath.Join(dir, markerFile), []byte(now.Format(time.RFC3339)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing completion marker: %w", err)
	}

	logger.Info("Backup %s complete (%d documents, %d vectors)", name, docCount, vecCount)
	return &domain.Snapshot{
		Name:      name,
		Path:      dir,
		CreatedAt: now,
		Complete:  true,
		Documents: docCount,
		Vectors:   vecCount,
	}, nil
}

// copyPhase copies both store files and the library tree under the
// exclusive commit lock.
func (m *Manager) copyPhase(ctx context.Context, dir string) ([]string, error) {
	if m.cfg.Gate != nil {
		m.cfg.Gate.Lock()
		defer m.cfg.Gate.Unlock()
	}

	var files []string
	for _, src := range []string{m.cfg.Meta.Path(), m.cfg.Vectors.Path()} {
		copied, err := copySQLite(src, dir)
		if err != nil {
			return nil, fmt.Errorf("copying %s: %w", filepath.Base(src), err)
		}
		files = append(files, copied...)
	}

	if m.cfg.LibraryDir != "" {
		if _, err := os.Stat(m.cfg.LibraryDir); err == nil {
			if err := copyDir(ctx, m.cfg.LibraryDir, filepath.Join(dir, librarySubdir)); err != nil {
				return nil, fmt.Errorf("copying library tree: %w", err)
			}
			files = append(files, librarySubdir)
		}
	}
	return files, nil
}

// Restore replaces the live stores with a snapshot's copies. Refuses
// snapshots without the completion marker before touching anything.
func (m *Manager) Restore(ctx context.Context, snapshotPath string) error {
	if _, err := os.Stat(filepath.Join(snapshotPath, markerFile)); err != nil {
		return fmt.Errorf("%s: %w", snapshotPath, domain.ErrSnapshotIncomplete)
	}

	if m.cfg.Gate != nil {
		m.cfg.Gate.Lock()
		defer m.cfg.Gate.Unlock()
	}

	for _, live := range []string{m.cfg.Meta.Path(), m.cfg.Vectors.Path()} {
		src := filepath.Join(snapshotPath, filepath.Base(live))
		if err := replaceFile(src, live); err != nil {
			return fmt.Errorf("restoring %s: %w", filepath.Base(live), err)
		}
		// WAL/SHM sidecars belong to the database file they were copied
		// with: a snapshot's sidecars carry transactions not yet
		// checkpointed into the main file, and the live sidecars belong
		// to the state being replaced. Install the snapshot's where they
		// exist, clear the live ones where they don't.
		for _, suffix := range []string{"-wal", "-shm"} {
			snapSidecar := src + suffix
			liveSidecar := live + suffix
			if _, err := os.Stat(snapSidecar); err == nil {
				if err := replaceFile(snapSidecar, liveSidecar); err != nil {
					return fmt.Errorf("restoring sidecar %s: %w", filepath.Base(liveSidecar), err)
				}
				continue
			}
			if err := os.Remove(liveSidecar); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("clearing sidecar %s: %w", filepath.Base(liveSidecar), err)
			}
		}
	}

	snapLibrary := filepath.Join(snapshotPath, librarySubdir)
	if _, err := os.Stat(snapLibrary); err == nil && m.cfg.LibraryDir != "" {
		if err := replaceDir(ctx, snapLibrary, m.cfg.LibraryDir); err != nil {
			return fmt.Errorf("restoring library tree: %w", err)
		}
	}

	logger.Info("Restored snapshot %s", filepath.Base(snapshotPath))
	return nil
}

// ListSnapshots enumerates snapshots under the backup root, newest first.
// Incomplete snapshots are included, flagged, so operators can clean up.
func (m *Manager) ListSnapshots(_ context.Context) ([]domain.Snapshot, error) {
	entries, err := os.ReadDir(m.cfg.BackupRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup root: %w", err)
	}

	var snapshots []domain.Snapshot
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), snapshotPrefix) {
			continue
		}
		dir := filepath.Join(m.cfg.BackupRoot, entry.Name())

		snap := domain.Snapshot{Name: entry.Name(), Path: dir}
		if _, err := os.Stat(filepath.Join(dir, markerFile)); err == nil {
			snap.Complete = true
		}
		if data, err := os.ReadFile(filepath.Join(dir, manifestFile)); err == nil {
			var man manifest
			if toml.Unmarshal(data, &man) == nil {
				snap.CreatedAt = man.CreatedAt
				snap.Documents = man.Documents
				snap.Vectors = man.Vectors
			}
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name > snapshots[j].Name })
	return snapshots, nil
}

// copySQLite copies a database file plus any WAL/SHM sidecars, so a
// snapshot taken mid-checkpoint still opens cleanly.
func copySQLite(src, destDir string) ([]string, error) {
	var copied []string
	for _, path := range []string{src, src + "-wal", src + "-shm"} {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		name := filepath.Base(path)
		if err := copyFile(path, filepath.Join(destDir, name)); err != nil {
			return nil, err
		}
		copied = append(copied, name)
	}
	return copied, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyDir(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		return copyFile(path, target)
	})
}

// replaceFile installs src over dest via a temp name and rename, so a
// failure mid-copy never leaves a truncated live file.
func replaceFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}
	tmp := dest + ".restore-tmp"
	if err := copyFile(src, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// replaceDir swaps the live directory for a copy of src.
func replaceDir(ctx context.Context, src, dest string) error {
	tmp := dest + ".restore-tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	if err := copyDir(ctx, src, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}
