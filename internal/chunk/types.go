package chunk

// Default chunk size bounds, in characters.
const (
	DefaultMinSize     = 200
	DefaultMaxSize     = 1200
	DefaultOverlapSize = 100
)

// minOverlapChars is the smallest overlap worth injecting. A shorter
// suffix repeats noise without giving the embedder usable context.
const minOverlapChars = 20

// Config bounds chunk sizes. All values are character counts.
type Config struct {
	MinSize     int // chunks below this are merged into a neighbor
	MaxSize     int // hard ceiling, except for atomic oversize lines
	OverlapSize int // tail of the previous chunk prepended to the next; 0 disables
}

// DefaultConfig returns the general-purpose chunking bounds.
func DefaultConfig() Config {
	return Config{
		MinSize:     DefaultMinSize,
		MaxSize:     DefaultMaxSize,
		OverlapSize: DefaultOverlapSize,
	}
}

// RAGConfig returns bounds tuned for retrieval-augmented generation:
// larger chunks with more overlap for better answer context.
func RAGConfig() Config {
	return Config{
		MinSize:     300,
		MaxSize:     1500,
		OverlapSize: 150,
	}
}

// FastConfig returns bounds for quick indexing with no overlap.
func FastConfig() Config {
	return Config{
		MinSize:     500,
		MaxSize:     1000,
		OverlapSize: 0,
	}
}

// Chunker splits document text into retrieval units.
type Chunker interface {
	// Chunk splits text into ordered chunks. Empty or whitespace-only
	// input yields an empty result; Chunk never fails.
	Chunk(text string) []string

	// Name identifies the chunking strategy for logging.
	Name() string
}
