package image

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

type mockOCR struct {
	text string
	err  error
}

func (m *mockOCR) Recognize(_ context.Context, _ string) (string, error) {
	return m.text, m.err
}

func entry() *domain.StagingEntry {
	return &domain.StagingEntry{Digest: "cafe01", Path: "/staging/cafe01.png", Kind: domain.KindImage}
}

func collect(ch <-chan domain.ExtractionUnit) []domain.ExtractionUnit {
	var units []domain.ExtractionUnit
	for u := range ch {
		units = append(units, u)
	}
	return units
}

func TestExtractImageOnly(t *testing.T) {
	e := New(nil)
	assert.Equal(t, domain.KindImage, e.Kind())

	ch, err := e.Extract(context.Background(), entry())
	require.NoError(t, err)
	units := collect(ch)

	require.Len(t, units, 1)
	assert.Equal(t, domain.ModalityImage, units[0].Modality)
	assert.Equal(t, "/staging/cafe01.png", units[0].ImageRef)
	assert.False(t, units[0].Failed)
}

func TestExtractWithOCRText(t *testing.T) {
	ch, err := New(&mockOCR{text: "STOP sign\n"}).Extract(context.Background(), entry())
	require.NoError(t, err)
	units := collect(ch)

	require.Len(t, units, 2)
	assert.Equal(t, domain.ModalityImage, units[0].Modality)
	assert.Equal(t, domain.ModalityText, units[1].Modality)
	assert.Equal(t, domain.MethodOCR, units[1].Method)
	assert.Equal(t, "STOP sign", units[1].Text)
}

func TestExtractOCRNoText(t *testing.T) {
	// a photo without any text yields only the image unit
	ch, err := New(&mockOCR{text: "  \n"}).Extract(context.Background(), entry())
	require.NoError(t, err)
	units := collect(ch)
	require.Len(t, units, 1)
}

func TestExtractOCRFailureIsolated(t *testing.T) {
	ch, err := New(&mockOCR{err: errors.New("tesseract crashed")}).Extract(context.Background(), entry())
	require.NoError(t, err)
	units := collect(ch)

	require.Len(t, units, 2)
	assert.False(t, units[0].Failed, "image unit survives an OCR failure")
	assert.True(t, units[1].Failed)
	assert.Contains(t, units[1].Error, "tesseract crashed")
}
