package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

type memVector struct {
	docID    string
	unit     int
	modality domain.Modality
	vector   []float32
	seq      int64
}

// VectorIndex is an in-memory implementation of driven.VectorIndex with
// the same ordering semantics as the SQLite-backed index: cosine scores
// on pre-normalised vectors, ties broken by insertion order.
type VectorIndex struct {
	mu      sync.RWMutex
	vectors map[[2]any]*memVector // key: [docID, unitIndex]
	order   []*memVector
	nextSeq int64
	dim     int

	// UpsertErr, when set, is returned by Upsert before any mutation.
	UpsertErr error
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{vectors: make(map[[2]any]*memVector)}
}

// Upsert inserts or replaces vectors keyed by (DocumentID, UnitIndex).
func (v *VectorIndex) Upsert(_ context.Context, embeddings []domain.Embedding) error {
	if v.UpsertErr != nil {
		return v.UpsertErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range embeddings {
		if v.dim == 0 {
			v.dim = len(e.Vector)
		} else if len(e.Vector) != v.dim {
			return domain.ErrDimensionMismatch
		}

		key := [2]any{e.DocumentID, e.UnitIndex}
		if existing, ok := v.vectors[key]; ok {
			// Replace in place: the original seq is preserved so
			// tie-break order stays stable across re-runs.
			existing.vector = append([]float32(nil), e.Vector...)
			existing.modality = e.Modality
			continue
		}

		mv := &memVector{
			docID:    e.DocumentID,
			unit:     e.UnitIndex,
			modality: e.Modality,
			vector:   append([]float32(nil), e.Vector...),
			seq:      v.nextSeq,
		}
		v.nextSeq++
		v.vectors[key] = mv
		v.order = append(v.order, mv)
	}
	return nil
}

// Search returns the top-k hits by cosine similarity.
func (v *VectorIndex) Search(_ context.Context, query []float32, opts driven.VectorSearchOptions) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dim != 0 && len(query) != v.dim {
		return nil, domain.ErrDimensionMismatch
	}

	type scored struct {
		hit driven.VectorHit
		seq int64
	}
	var hits []scored
	for _, mv := range v.order {
		if opts.Modality != "" && mv.modality != opts.Modality {
			continue
		}
		hits = append(hits, scored{
			hit: driven.VectorHit{
				DocumentID: mv.docID,
				UnitIndex:  mv.unit,
				Modality:   mv.modality,
				Similarity: dot(query, mv.vector),
			},
			seq: mv.seq,
		})
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
func (v *VectorIndex) Delete(_ context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.order[:0]
	for _, mv := range v.order {
		if mv.docID == documentID {
			delete(v.vectors, [2]any{mv.docID, mv.unit})
			continue
		}
		kept = append(kept, mv)
	}
	v.order = kept
	return nil
}

// Count returns the number of stored vectors.
func (v *VectorIndex) Count(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.order), nil
}

// Path returns a placeholder path; the memory index has no file.
func (v *VectorIndex) Path() string {
	return ":memory:"
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
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
