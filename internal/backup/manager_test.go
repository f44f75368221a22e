package backup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/storage/vectordb"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

type env struct {
	manager *Manager
	meta    *sqlite.Store
	vectors *vectordb.Index
	dataDir string
	root    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")

	meta, err := sqlite.NewStore(dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	vectors, err := vectordb.NewIndex(dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	manager := NewManager(Config{
		BackupRoot: filepath.Join(base, "backups"),
		LibraryDir: filepath.Join(dataDir, "library"),
		Meta:       meta,
		Vectors:    vectors,
		Gate:       &sync.RWMutex{},
	})
	return &env{manager: manager, meta: meta, vectors: vectors, dataDir: dataDir, root: filepath.Join(base, "backups")}
}

func (e *env) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.meta.CreateDocument(ctx, &domain.Document{
		ID: "doc1", Source: "/x.txt", Kind: domain.KindText, Status: domain.StatusIndexed,
	}))
	require.NoError(t, e.vectors.Upsert(ctx, []domain.Embedding{
		{DocumentID: "doc1", UnitIndex: 0, Modality: domain.ModalityText, Vector: []float32{1, 0}},
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(e.dataDir, "library"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(e.dataDir, "library", "doc1.txt"), []byte("original"), 0o600))
}

func TestBackupWritesCompleteSnapshot(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	snap, err := e.manager.Backup(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Complete)
	assert.Equal(t, 1, snap.Documents)
	assert.Equal(t, 1, snap.Vectors)

	_, err = os.Stat(filepath.Join(snap.Path, "COMPLETE"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(snap.Path, "manifest.toml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(snap.Path, "metadata.db"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(snap.Path, "vectors.db"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(snap.Path, "library", "doc1.txt"))
	assert.NoError(t, err)
}

func TestRestoreRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	snap, err := e.manager.Backup(ctx)
	require.NoError(t, err)

	// mutate live state after the snapshot
	require.NoError(t, e.meta.CreateDocument(ctx, &domain.Document{
		ID: "doc2", Source: "/y.txt", Kind: domain.KindText, Status: domain.StatusIndexed,
	}))
	require.NoError(t, e.vectors.Upsert(ctx, []domain.Embedding{
		{DocumentID: "doc2", UnitIndex: 0, Modality: domain.ModalityText, Vector: []float32{0, 1}},
	}))
	require.NoError(t, os.WriteFile(filepath.Join(e.dataDir, "library", "doc2.txt"), []byte("later"), 0o600))

	// close live handles, restore, reopen
	require.NoError(t, e.meta.Close())
	require.NoError(t, e.vectors.Close())
	require.NoError(t, e.manager.Restore(ctx, snap.Path))

	meta, err := sqlite.NewStore(e.dataDir)
	require.NoError(t, err)
	defer meta.Close()

	n, err := meta.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "post-snapshot document gone after restore")

	// snapshot data may live in the WAL sidecar rather than the main
	// file when the copy ran before a checkpoint; it must still be there
	doc, err := meta.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "/x.txt", doc.Source)

	vectors, err := vectordb.NewIndex(e.dataDir)
	require.NoError(t, err)
	defer vectors.Close()

	vn, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, vn, "vector store rolled back with metadata")

	_, err = os.Stat(filepath.Join(e.dataDir, "library", "doc2.txt"))
	assert.True(t, os.IsNotExist(err), "library tree restored wholesale")
	_, err = os.Stat(filepath.Join(e.dataDir, "library", "doc1.txt"))
	assert.NoError(t, err)
}

func TestRestoreRefusesUnmarkedSnapshot(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	snap, err := e.manager.Backup(ctx)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(snap.Path, "COMPLETE")))

	err = e.manager.Restore(ctx, snap.Path)
	assert.ErrorIs(t, err, domain.ErrSnapshotIncomplete)

	// live state untouched
	n, err := e.meta.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	ctx := context.Background()

	first, err := e.manager.Backup(ctx)
	require.NoError(t, err)
	second, err := e.manager.Backup(ctx)
	require.NoError(t, err)

	// fake an interrupted third snapshot
	interrupted := filepath.Join(e.root, "backup_99991231T000000_deadbeef")
	require.NoError(t, os.MkdirAll(interrupted, 0o700))

	snaps, err := e.manager.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.False(t, snaps[0].Complete, "interrupted snapshot listed but flagged")
	names := []string{snaps[1].Name, snaps[2].Name}
	assert.Contains(t, names, first.Name)
	assert.Contains(t, names, second.Name)
	assert.True(t, snaps[1].Complete)
	assert.True(t, snaps[2].Complete)
}

func TestListSnapshotsEmptyRoot(t *testing.T) {
	e := newEnv(t)
	snaps, err := e.manager.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
