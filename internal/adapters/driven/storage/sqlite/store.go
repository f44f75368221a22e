// Package sqlite provides the SQLite-backed metadata store. One file,
// WAL mode, embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MetadataStore = (*Store)(nil)

// Store is the SQLite-backed metadata store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the metadata database at dataDir/metadata.db.
// If dataDir is empty, defaults to ~/.librarian/data.
func NewStore(dataDir string) (*Store, error) {
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

	dbPath := filepath.Join(dataDir, "metadata.db")

	// WAL mode keeps queries readable while the orchestrator writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// CreateDocument inserts a new document row.
func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	errorsJSON, err := json.Marshal(doc.Errors)
	if err != nil {
		return fmt.Errorf("marshalling errors: %w", err)
	}

	now := time.Now().UTC()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, source, kind, size, library_path, status, errors, ingested_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Source, string(doc.Kind), doc.Size, doc.LibraryPath,
		string(doc.Status), string(errorsJSON), doc.IngestedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by content hash.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, kind, size, library_path, status, errors, ingested_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row.Scan)
}

// GetDocuments retrieves documents for an ID list; missing IDs are omitted.
func (s *Store) GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, kind, size, library_path, status, errors, ingested_at, updated_at
		FROM documents WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Document)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = *doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	// Preserve the caller's ID order.
	docs := make([]domain.Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// SaveUnits stores or replaces the extraction units for a document.
func (s *Store) SaveUnits(ctx context.Context, documentID string, units []domain.ExtractionUnit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveUnitsTx(ctx, tx, documentID, units); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetUnits retrieves all units for a document, ordered by index.
func (s *Store) GetUnits(ctx context.Context, documentID string) ([]domain.ExtractionUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, unit_index, modality, content, image_ref, method, page, failed, error
		FROM units WHERE document_id = ? ORDER BY unit_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var units []domain.ExtractionUnit
	for rows.Next() {
		unit, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, err
		}
		units = append(units, *unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return units, nil
}

// GetUnit retrieves a single unit by (document, index).
func (s *Store) GetUnit(ctx context.Context, documentID string, index int) (*domain.ExtractionUnit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, unit_index, modality, content, image_ref, method, page, failed, error
		FROM units WHERE document_id = ? AND unit_index = ?
	`, documentID, index)
	return scanUnit(row.Scan)
}

// UpdateStatus advances a document's status and replaces its error list.
// Illegal transitions are rejected with domain.ErrInvalidTransition.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status, unitErrs []domain.UnitError) error {
	current, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransition(status) {
		return fmt.Errorf("%s -> %s: %w", current.Status, status, domain.ErrInvalidTransition)
	}

	errorsJSON, err := json.Marshal(unitErrs)
	if err != nil {
		return fmt.Errorf("marshalling errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, errors = ?, updated_at = ? WHERE id = ?
	`, string(status), string(errorsJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// Commit atomically writes the document row, its full unit set, and the
// new status in one transaction. Readers never observe a document with a
// partial unit set.
func (s *Store) Commit(ctx context.Context, doc *domain.Document, units []domain.ExtractionUnit) error {
	current, err := s.GetDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if current != nil && !current.Status.CanTransition(doc.Status) {
		return fmt.Errorf("%s -> %s: %w", current.Status, doc.Status, domain.ErrInvalidTransition)
	}

	errorsJSON, err := json.Marshal(doc.Errors)
	if err != nil {
		return fmt.Errorf("marshalling errors: %w", err)
	}

	now := time.Now().UTC()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	doc.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, source, kind, size, library_path, status, errors, ingested_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			kind = excluded.kind,
			size = excluded.size,
			library_path = excluded.library_path,
			status = excluded.status,
			errors = excluded.errors,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Source, string(doc.Kind), doc.Size, doc.LibraryPath,
		string(doc.Status), string(errorsJSON), doc.IngestedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	if err := saveUnitsTx(ctx, tx, doc.ID, units); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SearchUnits finds units whose content contains the literal phrase,
// via the FTS5 index, best bm25 score first. Rowid breaks ties so the
// ordering is stable.
func (s *Store) SearchUnits(ctx context.Context, phrase string, limit int) ([]driven.UnitHit, error) {
	if strings.TrimSpace(phrase) == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.document_id, u.unit_index
		FROM units_fts
		JOIN units u ON u.rowid = units_fts.rowid
		WHERE units_fts MATCH ?
		ORDER BY bm25(units_fts), u.rowid
		LIMIT ?
	`, ftsPhrase(phrase), limit)
	if err != nil {
		return nil, fmt.Errorf("searching unit text: %w", err)
	}
	defer rows.Close()

	var hits []driven.UnitHit
	for rows.Next() {
		var hit driven.UnitHit
		if err := rows.Scan(&hit.DocumentID, &hit.UnitIndex); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}
	return hits, nil
}

// ftsPhrase quotes user text as a single FTS5 phrase so query operators
// inside it are matched literally rather than parsed.
func ftsPhrase(phrase string) string {
	return `"` + strings.ReplaceAll(phrase, `"`, `""`) + `"`
}

// ListByStatus returns documents currently at the given stage.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, kind, size, library_path, status, errors, ingested_at, updated_at
		FROM documents WHERE status = ? ORDER BY id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("querying by status: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the total number of documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// DeleteDocument removes a document and its units. Units are deleted
// explicitly rather than via the cascade so the FTS delete trigger runs
// for each row.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting units: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer covers *sql.Tx and *sql.DB for shared statement helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveUnitsTx(ctx context.Context, tx execer, documentID string, units []domain.ExtractionUnit) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing units: %w", err)
	}
	for _, unit := range units {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO units (document_id, unit_index, modality, content, image_ref, method, page, failed, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, documentID, unit.Index, string(unit.Modality), unit.Text, unit.ImageRef,
			string(unit.Method), unit.Page, unit.Failed, unit.Error)
		if err != nil {
			return fmt.Errorf("saving unit %d: %w", unit.Index, err)
		}
	}
	return nil
}

// scanFunc abstracts *sql.Row.Scan and *sql.Rows.Scan.
type scanFunc func(dest ...any) error

func scanDocument(scan scanFunc) (*domain.Document, error) {
	var doc domain.Document
	var kind, status, errorsJSON string

	err := scan(&doc.ID, &doc.Source, &kind, &doc.Size, &doc.LibraryPath,
		&status, &errorsJSON, &doc.IngestedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Kind = domain.MediaKind(kind)
	doc.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(errorsJSON), &doc.Errors); err != nil {
		return nil, fmt.Errorf("unmarshalling errors: %w", err)
	}
	return &doc, nil
}

func scanUnit(scan scanFunc) (*domain.ExtractionUnit, error) {
	var unit domain.ExtractionUnit
	var modality, method string

	err := scan(&unit.DocumentID, &unit.Index, &modality, &unit.Text,
		&unit.ImageRef, &method, &unit.Page, &unit.Failed, &unit.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning unit: %w", err)
	}

	unit.Modality = domain.Modality(modality)
	unit.Method = domain.ExtractionMethod(method)
	return &unit, nil
}
