package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

func TestMetadataStoreCreateAndGet(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "abc", Source: "/tmp/a.txt", Kind: domain.KindText, Status: domain.StatusStaged}
	require.NoError(t, store.CreateDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.txt", got.Source)

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// duplicate hash rejected
	assert.Error(t, store.CreateDocument(ctx, doc))
}

func TestMetadataStoreStatusTransitions(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "abc", Status: domain.StatusStaged}
	require.NoError(t, store.CreateDocument(ctx, doc))

	require.NoError(t, store.UpdateStatus(ctx, "abc", domain.StatusExtracted, nil))
	require.NoError(t, store.UpdateStatus(ctx, "abc", domain.StatusEmbedded, nil))

	// illegal jump
	err := store.UpdateStatus(ctx, "abc", domain.StatusStaged, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, store.UpdateStatus(ctx, "abc", domain.StatusIndexed, nil))
	got, err := store.GetDocument(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIndexed, got.Status)
}

func TestMetadataStoreCommitAndUnits(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	doc := &domain.Document{ID: "abc", Status: domain.StatusStaged}
	require.NoError(t, store.CreateDocument(ctx, doc))
	require.NoError(t, store.UpdateStatus(ctx, "abc", domain.StatusExtracted, nil))
	require.NoError(t, store.UpdateStatus(ctx, "abc", domain.StatusEmbedded, nil))

	units := []domain.ExtractionUnit{
		{DocumentID: "abc", Index: 1, Modality: domain.ModalityText, Text: "page two", Page: 2},
		{DocumentID: "abc", Index: 0, Modality: domain.ModalityText, Text: "page one", Page: 1},
	}
	indexed := *doc
	indexed.Status = domain.StatusIndexed
	require.NoError(t, store.Commit(ctx, &indexed, units))

	got, err := store.GetUnits(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index, "units ordered by index")

	unit, err := store.GetUnit(ctx, "abc", 1)
	require.NoError(t, err)
	assert.Equal(t, "page two", unit.Text)

	_, err = store.GetUnit(ctx, "abc", 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStoreSearchUnits(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	require.NoError(t, store.SaveUnits(ctx, "a", []domain.ExtractionUnit{
		{DocumentID: "a", Index: 0, Modality: domain.ModalityText, Text: "The Quick Brown Fox"},
	}))
	require.NoError(t, store.SaveUnits(ctx, "b", []domain.ExtractionUnit{
		{DocumentID: "b", Index: 0, Modality: domain.ModalityText, Text: "a slow red fox"},
	}))

	hits, err := store.SearchUnits(ctx, "quick brown", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].DocumentID)

	hits, err = store.SearchUnits(ctx, "fox", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "limit caps hits")

	hits, err = store.SearchUnits(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMetadataStoreListByStatusAndHydrate(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	for _, d := range []domain.Document{
		{ID: "a", Status: domain.StatusIndexed},
		{ID: "b", Status: domain.StatusEmbedded},
		{ID: "c", Status: domain.StatusIndexed},
	} {
		require.NoError(t, store.CreateDocument(ctx, &d))
	}

	indexed, err := store.ListByStatus(ctx, domain.StatusIndexed)
	require.NoError(t, err)
	assert.Len(t, indexed, 2)

	docs, err := store.GetDocuments(ctx, []string{"c", "missing", "a"})
	require.NoError(t, err)
	assert.Len(t, docs, 2, "missing IDs silently omitted")

	n, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
