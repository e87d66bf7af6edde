// Package search implements the hybrid retriever: ingestion (chunk →
// embed → store) and query-time fusion of keyword and vector results
// using Reciprocal Rank Fusion (RRF).
package search

import "errors"

// Provenance records which search legs produced a fused result.
type Provenance string

const (
	// ProvenanceKeyword marks a hit found only by keyword search.
	ProvenanceKeyword Provenance = "keyword"
	// ProvenanceVector marks a hit found only by vector search.
	ProvenanceVector Provenance = "vector"
	// ProvenanceHybrid marks a hit found by both legs.
	ProvenanceHybrid Provenance = "hybrid"
)

// FusedResult is a single ranked search hit after fusion (or after a
// single-leg search, with the leg's native score).
type FusedResult struct {
	DocID      int64
	URL        string
	Title      string
	ChunkText  string  // best-matching chunk from the vector leg, if any
	Snippet    string  // highlighted snippet from the keyword leg, if any
	Score      float64 // RRF score for hybrid, normalized native score otherwise
	Provenance Provenance
}

// RetrieverConfig tunes the hybrid retriever.
type RetrieverConfig struct {
	// RRFConstant is the RRF smoothing parameter k. Defaults to 60.
	RRFConstant int

	// Overfetch multiplies the requested limit on each leg before
	// fusion, so consensus can promote results beyond the cutoff of a
	// single leg. Defaults to 2.
	Overfetch int
}

// DefaultRetrieverConfig returns the standard retriever tuning.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		RRFConstant: DefaultRRFConstant,
		Overfetch:   2,
	}
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Stats summarizes the retriever's backing stores.
type Stats struct {
	DocumentCount int
	VectorCount   int
	Frameworks    map[string]int
}
