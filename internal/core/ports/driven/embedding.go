package driven

import "context"

// TextEmbedder converts text into fixed-dimension vectors.
//
// Implementations batch internally where the backing model supports it.
// Batch size is a throughput knob, never a correctness one: results must
// be identical regardless of how a unit set is split into batches.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - A CLIP inference server (shared text/image space)
type TextEmbedder interface {
	// EmbedTexts generates one vector per input text, pre-normalised to
	// unit length. A per-input failure fails the whole call; callers
	// retry failed units individually.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g. 384, 512, 768).
	// Must match the VectorIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// ImageEmbedder converts raw image bytes into vectors in the SAME
// coordinate space as the paired TextEmbedder, enabling cross-modal
// retrieval. Optional: when nil, image units are stored but not indexed.
type ImageEmbedder interface {
	// EmbedImages generates one vector per input image, pre-normalised.
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)

	// Dimensions returns the embedding vector size. Must equal the
	// paired TextEmbedder's dimensions.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
