package extractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

type fakeExtractor struct {
	kind domain.MediaKind
}

func (f *fakeExtractor) Kind() domain.MediaKind { return f.kind }

func (f *fakeExtractor) Extract(_ context.Context, entry *domain.StagingEntry) (<-chan domain.ExtractionUnit, error) {
	ch := make(chan domain.ExtractionUnit, 1)
	ch <- domain.ExtractionUnit{DocumentID: entry.Digest, Index: 0, Modality: domain.ModalityText}
	close(ch)
	return ch, nil
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeExtractor{kind: domain.KindText})

	units, err := r.Extract(context.Background(), &domain.StagingEntry{Digest: "d1", Kind: domain.KindText})
	require.NoError(t, err)
	unit := <-units
	assert.Equal(t, "d1", unit.DocumentID)

	_, err = r.Extract(context.Background(), &domain.StagingEntry{Kind: domain.KindPDF})
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestRegistryKinds(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Kinds())

	r.Register(&fakeExtractor{kind: domain.KindText})
	r.Register(&fakeExtractor{kind: domain.KindImage})
	assert.ElementsMatch(t, []domain.MediaKind{domain.KindText, domain.KindImage}, r.Kinds())
}
