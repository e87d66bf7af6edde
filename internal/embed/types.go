package embed

import (
	"context"
	"os"
)

// DefaultDimensions is the default embedding dimension.
const DefaultDimensions = 768

// ValidDimension reports whether d is a supported output dimensionality
// for the Gemini embedding model.
func ValidDimension(d int) bool {
	switch d {
	case 768, 1536, 3072:
		return true
	}
	return false
}

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// GetAPIKey resolves the Gemini API key from the environment.
// GEMINI_API_KEY takes precedence over GOOGLE_AI_API_KEY.
func GetAPIKey() (string, bool) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, true
	}
	if key := os.Getenv("GOOGLE_AI_API_KEY"); key != "" {
		return key, true
	}
	return "", false
}

// zeroVector returns an all-zero embedding of the given dimension.
// Used for empty input, which has no meaningful embedding.
func zeroVector(dims int) []float32 {
	return make([]float32, dims)
}
