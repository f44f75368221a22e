// Package vectordb provides the SQLite-backed vector index. Vectors live
// in their own database file so backup can copy the two stores as plain
// files and so metadata transactions never grow with vector size.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// metric is the only similarity metric the index supports. Vectors are
// stored pre-normalised, so cosine reduces to a dot product.
const metric = "cosine"

// Index is the SQLite-backed vector index.
type Index struct {
	db   *sql.DB
	path string
}

// NewIndex opens (or creates) the vector database at dataDir/vectors.db.
// If dataDir is empty, defaults to ~/.librarian/data.
func NewIndex(dataDir string) (*Index, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".librarian", "data")
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}

	idx := &Index{db: db, path: dbPath}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (x *Index) initSchema() error {
	_, err := x.db.Exec(`
		CREATE TABLE IF NOT EXISTS vectors (
			document_id TEXT NOT NULL,
			unit_index  INTEGER NOT NULL,
			modality    TEXT NOT NULL,
			embedding   BLOB NOT NULL,
			seq         INTEGER NOT NULL,
			PRIMARY KEY (document_id, unit_index)
		);
		CREATE TABLE IF NOT EXISTS index_config (
			id        INTEGER PRIMARY KEY CHECK (id = 1),
			dimension INTEGER NOT NULL,
			metric    TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating vector schema: %w", err)
	}
	return nil
}

// dimension returns the configured dimension, or 0 when no vector has
// been stored yet.
func (x *Index) dimension(ctx context.Context) (int, error) {
	var dim int
	err := x.db.QueryRowContext(ctx, "SELECT dimension FROM index_config WHERE id = 1").Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index config: %w", err)
	}
	return dim, nil
}

// Upsert inserts or replaces vectors keyed by (document, unit). A replace
// keeps the row's original seq so tie-break ordering survives re-runs.
// The first vector ever stored pins the index dimension.
func (x *Index) Upsert(ctx context.Context, embeddings []domain.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	dim, err := x.dimension(ctx)
	if err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range embeddings {
		if dim == 0 {
			dim = len(e.Vector)
			_, err := tx.ExecContext(ctx,
				"INSERT INTO index_config (id, dimension, metric) VALUES (1, ?, ?)", dim, metric)
			if err != nil {
				return fmt.Errorf("pinning index dimension: %w", err)
			}
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("vector for %s/%d has %d dimensions, index has %d: %w",
				e.DocumentID, e.UnitIndex, len(e.Vector), dim, domain.ErrDimensionMismatch)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (document_id, unit_index, modality, embedding, seq)
			VALUES (?, ?, ?, ?, COALESCE((SELECT MAX(seq) FROM vectors), 0) + 1)
			ON CONFLICT(document_id, unit_index) DO UPDATE SET
				modality = excluded.modality,
				embedding = excluded.embedding
		`, e.DocumentID, e.UnitIndex, string(e.Modality), float32SliceToBytes(e.Vector))
		if err != nil {
			return fmt.Errorf("upserting vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search scans all vectors and returns the top-k by cosine similarity,
// descending, ties broken by insertion order. Deterministic for a fixed
// store state.
func (x *Index) Search(ctx context.Context, query []float32, opts driven.VectorSearchOptions) ([]driven.VectorHit, error) {
	dim, err := x.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(query) != dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), dim, domain.ErrDimensionMismatch)
	}

	q := "SELECT document_id, unit_index, modality, embedding, seq FROM vectors"
	var args []any
	if opts.Modality != "" {
		q += " WHERE modality = ?"
		args = append(args, string(opts.Modality))
	}

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	defer rows.Close()

	type scored struct {
		hit driven.VectorHit
		seq int64
	}
	var hits []scored
	for rows.Next() {
		var docID, modality string
		var unitIndex int
		var blob []byte
		var seq int64
		if err := rows.Scan(&docID, &unitIndex, &modality, &blob, &seq); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		hits = append(hits, scored{
			hit: driven.VectorHit{
				DocumentID: docID,
				UnitIndex:  unitIndex,
				Modality:   domain.Modality(modality),
				Similarity: dot(query, bytesToFloat32Slice(blob)),
			},
			seq: seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].hit.Similarity != hits[j].hit.Similarity {
			return hits[i].hit.Similarity > hits[j].hit.Similarity
		}
		return hits[i].seq < hits[j].seq
	})

	k := opts.TopK
	if k <= 0 || k > len(hits) {
		k = len(hits)
	}
	out := make([]driven.VectorHit, k)
	for i := 0; i < k; i++ {
		out[i] = hits[i].hit
	}
	return out, nil
}

// Delete removes all vectors for a document.
func (x *Index) Delete(ctx context.Context, documentID string) error {
	if _, err := x.db.ExecContext(ctx, "DELETE FROM vectors WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Count returns the number of stored vectors.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Path returns the database file path.
func (x *Index) Path() string {
	return x.path
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// dot is cosine similarity for pre-normalised vectors.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
