// Package clip provides text and image embedders backed by a CLIP
// inference server. Both modalities land in one coordinate space, which
// is what makes cross-modal retrieval (text query, image hit) work.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Embedder implements both capability interfaces.
var (
	_ driven.TextEmbedder  = (*Embedder)(nil)
	_ driven.ImageEmbedder = (*Embedder)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:8876"
	DefaultModel      = "clip-vit-base-patch32"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 512 // ViT-B/32 output size
)

// Config holds configuration for the CLIP server adapter.
type Config struct {
	// BaseURL is the inference server base URL.
	BaseURL string

	// Model names the CLIP checkpoint the server runs.
	Model string

	// Timeout is the per-request timeout. Image batches render slowly on
	// CPU-only hosts, hence the generous default.
	Timeout time.Duration

	// Dimensions is the embedding vector size.
	Dimensions int
}

// Embedder talks to a CLIP inference server over HTTP.
type Embedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

// textRequest is the /embed/text request format.
type textRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

// imageRequest is the /embed/image request format; images travel base64.
type imageRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"`
}

// embedResponse is the response format shared by both endpoints.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// New creates a new CLIP server embedder.
func New(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	return &Embedder{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// EmbedTexts generates one unit-length vector per text in a single batch
// request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.post(ctx, "/embed/text", textRequest{Model: e.model, Texts: texts}, len(texts))
}

// EmbedImages generates one unit-length vector per image in a single
// batch request.
func (e *Embedder) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}
	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}
	return e.post(ctx, "/embed/image", imageRequest{Model: e.model, Images: encoded}, len(images))
}

func (e *Embedder) post(ctx context.Context, path string, payload any, want int) ([][]float32, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("clip server error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("clip server error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embedResp.Embeddings) != want {
		return nil, fmt.Errorf("server returned %d embeddings for %d inputs", len(embedResp.Embeddings), want)
	}

	vectors := make([][]float32, len(embedResp.Embeddings))
	for i, raw := range embedResp.Embeddings {
		if len(raw) != e.dimensions {
			return nil, fmt.Errorf("model returned %d dimensions, expected %d", len(raw), e.dimensions)
		}
		vectors[i] = normalise(raw)
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the name of the embedding model being used.
func (e *Embedder) ModelName() string {
	return e.model
}

// Ping validates the server is reachable via its health endpoint.
func (e *Embedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("clip: failed to create ping request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("clip: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip: server returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (e *Embedder) Close() error {
	return nil
}

// normalise converts to float32 at unit length so stored vectors can be
// compared with a plain dot product.
func normalise(raw []float64) []float32 {
	var norm float64
	for _, v := range raw {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	vector := make([]float32, len(raw))
	for i, v := range raw {
		vector[i] = float32(v / norm)
	}
	return vector
}
