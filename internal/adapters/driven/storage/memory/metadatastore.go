// Package memory provides in-memory store implementations used in tests
// and as reference semantics for the SQLite adapters.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	units     map[string][]domain.ExtractionUnit

	// CommitErr, when set, is returned by Commit before any mutation.
	// Used to exercise dual-store failure paths in orchestrator tests.
	CommitErr error
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		documents: make(map[string]domain.Document),
		units:     make(map[string][]domain.ExtractionUnit),
	}
}

// CreateDocument inserts a new document row.
func (s *MetadataStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return domain.ErrInvalidInput
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by content hash.
func (s *MetadataStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocuments retrieves documents for an ID list; missing IDs are omitted.
func (s *MetadataStore) GetDocuments(_ context.Context, ids []string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.documents[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// SaveUnits stores or replaces the extraction units for a document.
func (s *MetadataStore) SaveUnits(_ context.Context, documentID string, units []domain.ExtractionUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.ExtractionUnit, len(units))
	copy(cp, units)
	s.units[documentID] = cp
	return nil
}

// GetUnits retrieves all units for a document, ordered by index.
func (s *MetadataStore) GetUnits(_ context.Context, documentID string) ([]domain.ExtractionUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units, ok := s.units[documentID]
	if !ok {
		return nil, nil
	}
	cp := make([]domain.ExtractionUnit, len(units))
	copy(cp, units)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Index < cp[j].Index })
	return cp, nil
}

// GetUnit retrieves a single unit by (document, index).
func (s *MetadataStore) GetUnit(_ context.Context, documentID string, index int) (*domain.ExtractionUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.units[documentID] {
		if u.Index == index {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// UpdateStatus advances a document's status and replaces its error list.
func (s *MetadataStore) UpdateStatus(_ context.Context, id string, status domain.Status, unitErrs []domain.UnitError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !doc.Status.CanTransition(status) {
		return domain.ErrInvalidTransition
	}
	doc.Status = status
	doc.Errors = unitErrs
	s.documents[id] = doc
	return nil
}

// Commit atomically writes the document, its unit set, and the new status.
func (s *MetadataStore) Commit(_ context.Context, doc *domain.Document, units []domain.ExtractionUnit) error {
	if s.CommitErr != nil {
		return s.CommitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.documents[doc.ID]; ok {
		if !existing.Status.CanTransition(doc.Status) {
			return domain.ErrInvalidTransition
		}
	}
	s.documents[doc.ID] = *doc
	cp := make([]domain.ExtractionUnit, len(units))
	copy(cp, units)
	s.units[doc.ID] = cp
	return nil
}

// SearchUnits finds units whose content contains the phrase. A
// case-insensitive substring scan, ordered by document ID then index so
// results are deterministic.
func (s *MetadataStore) SearchUnits(_ context.Context, phrase string, limit int) ([]driven.UnitHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(phrase))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var hits []driven.UnitHit
	for _, id := range ids {
		for _, unit := range s.units[id] {
			if !strings.Contains(strings.ToLower(unit.Text), needle) {
				continue
			}
			hits = append(hits, driven.UnitHit{DocumentID: id, UnitIndex: unit.Index})
			if len(hits) == limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// ListByStatus returns documents currently at the given stage.
func (s *MetadataStore) ListByStatus(_ context.Context, status domain.Status) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.Status == status {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// CountDocuments returns the total number of documents.
func (s *MetadataStore) CountDocuments(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// DeleteDocument removes a document and its units.
func (s *MetadataStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.units, id)
	return nil
}

// Path returns a placeholder path; the memory store has no file.
func (s *MetadataStore) Path() string {
	return ":memory:"
}

// Close releases resources.
func (s *MetadataStore) Close() error {
	return nil
}
