package clip

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedTextsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed/text", r.URL.Path)
		var req textRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Texts, 2)
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 0}, {0, 2}}})
	}))
	defer server.Close()

	e := New(Config{BaseURL: server.URL, Dimensions: 2})
	vectors, err := e.EmbedTexts(context.Background(), []string{"a cat", "a dog"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	// normalised: {0,2} becomes {0,1}
	assert.InDelta(t, 1.0, float64(vectors[1][1]), 1e-6)
}

func TestEmbedImagesBase64(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed/image", r.URL.Path)
		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Images, 1)
		decoded, err := base64.StdEncoding.DecodeString(req.Images[0])
		require.NoError(t, err)
		assert.Equal(t, raw, decoded)
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{3, 4}}})
	}))
	defer server.Close()

	e := New(Config{BaseURL: server.URL, Dimensions: 2})
	vectors, err := e.EmbedImages(context.Background(), [][]byte{raw})
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	var norm float64
	for _, v := range vectors[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 0}}})
	}))
	defer server.Close()

	e := New(Config{BaseURL: server.URL, Dimensions: 2})
	_, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "2 inputs")
}

func TestEmbedEmptyBatch(t *testing.T) {
	e := New(Config{})
	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)

	vectors, err = e.EmbedImages(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestSharedSpaceDefaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, DefaultModel, e.ModelName())
}
