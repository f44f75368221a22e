package domain

import "time"

// Snapshot describes one point-in-time backup. A snapshot directory is
// only valid once its completion marker exists; partially written
// snapshots are never published as restorable.
type Snapshot struct {
	// Name is the timestamp-derived directory name.
	Name string

	// Path is the absolute snapshot directory.
	Path string

	// CreatedAt is when the backup was taken.
	CreatedAt time.Time

	// Complete reports whether the terminal marker was written.
	Complete bool

	// Documents is the document count recorded in the manifest.
	Documents int

	// Vectors is the vector count recorded in the manifest.
	Vectors int
}
