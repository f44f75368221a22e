package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

func queryFixture() []domain.QueryResult {
	return []domain.QueryResult{
		{
			Document: domain.Document{ID: "abc", Source: "/docs/paper.pdf", Kind: domain.KindPDF, Status: domain.StatusIndexed},
			Unit:     domain.ExtractionUnit{Index: 1, Modality: domain.ModalityText, Text: "  lots   of\n page text  ", Page: 2},
			Score:    0.912,
		},
		{
			Document: domain.Document{ID: "def", Source: "/pics/cat.png", Kind: domain.KindImage, Status: domain.StatusIndexed},
			Unit:     domain.ExtractionUnit{Index: 0, Modality: domain.ModalityImage, ImageRef: "/lib/def.png"},
			Score:    0.733,
		},
	}
}

func TestQueryCmd_Use(t *testing.T) {
	assert.Equal(t, "query [text]", queryCmd.Use)
}

func TestQueryCmd_HasLimitFlag(t *testing.T) {
	flag := queryCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestQueryCmd_TableOutput(t *testing.T) {
	ts := setupTestServices(t)
	var gotQuery string
	var gotOpts domain.QueryOptions
	ts.query.QueryTextFunc = func(_ context.Context, query string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
		gotQuery = query
		gotOpts = opts
		return queryFixture(), nil
	}

	out, err := execute(t, "query", "red stop sign", "--limit", "5")
	require.NoError(t, err)

	assert.Equal(t, "red stop sign", gotQuery)
	assert.Equal(t, 5, gotOpts.Limit)
	assert.Equal(t, domain.Modality(""), gotOpts.Modality, "cross-modal by default")

	assert.Contains(t, out, "[1] /docs/paper.pdf (0.912)")
	assert.Contains(t, out, "lots of page text", "snippet collapses whitespace")
	assert.Contains(t, out, "page 2")
	assert.Contains(t, out, "[2] /pics/cat.png (0.733)")
	assert.Contains(t, out, "image: def.png")
}

func TestQueryCmd_JSONOutput(t *testing.T) {
	ts := setupTestServices(t)
	ts.query.QueryTextFunc = func(context.Context, string, domain.QueryOptions) ([]domain.QueryResult, error) {
		return queryFixture(), nil
	}

	out, err := execute(t, "query", "anything", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Score": 0.912`)
	assert.Contains(t, out, `"Source": "/docs/paper.pdf"`)
}

func TestQueryCmd_NoResults(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "query", "nothing matches")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestQueryCmd_ModalityFilter(t *testing.T) {
	ts := setupTestServices(t)
	var gotOpts domain.QueryOptions
	ts.query.QueryTextFunc = func(_ context.Context, _ string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
		gotOpts = opts
		return nil, nil
	}

	_, err := execute(t, "query", "q", "--modality", "image")
	require.NoError(t, err)
	assert.Equal(t, domain.ModalityImage, gotOpts.Modality)
}

func TestQueryCmd_UnknownModality(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "query", "q", "--modality", "audio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown modality "audio"`)
}

func TestQueryCmd_ImageQuery(t *testing.T) {
	ts := setupTestServices(t)
	var gotImage []byte
	ts.query.QueryImageFunc = func(_ context.Context, image []byte, _ domain.QueryOptions) ([]domain.QueryResult, error) {
		gotImage = image
		return queryFixture()[:1], nil
	}

	imagePath := filepath.Join(t.TempDir(), "probe.png")
	require.NoError(t, os.WriteFile(imagePath, []byte{0x89, 'P', 'N', 'G'}, 0o600))

	out, err := execute(t, "query", "--image", imagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, gotImage)
	assert.Contains(t, out, "/docs/paper.pdf")
}

func TestQueryCmd_MissingQuery(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "give query text or --image")
}
