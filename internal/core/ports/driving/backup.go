package driving

import (
	"context"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// BackupService snapshots and restores both stores plus the library asset
// tree as one consistent unit.
type BackupService interface {
	// Backup takes a consistent snapshot of the metadata store, the
	// vector index, and the library tree. The snapshot directory is
	// only marked complete after every copy succeeded; an interrupted
	// backup is never mistaken for a valid one.
	Backup(ctx context.Context) (*domain.Snapshot, error)

	// Restore replaces the live stores with a snapshot's copies.
	// Destructive. Refuses snapshots without a completion marker with
	// domain.ErrSnapshotIncomplete, without touching live state.
	Restore(ctx context.Context, snapshotPath string) error

	// ListSnapshots enumerates snapshots under the backup root, newest
	// first, including incomplete ones (flagged).
	ListSnapshots(ctx context.Context) ([]domain.Snapshot, error)
}
