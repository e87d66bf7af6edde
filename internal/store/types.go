// Package store provides the two persistence backends for the knowledge
// base: a keyword index (SQLite FTS5, with a legacy Bleve backend) and a
// vector index (HNSW with gob snapshot persistence).
package store

import (
	"context"
	"fmt"
	"time"
)

// Document is a row in the keyword store. URL is the unique natural key;
// ID is assigned by the store on insert.
type Document struct {
	ID        int64
	URL       string
	Title     string
	Content   string
	Framework string
	CreatedAt time.Time
}

// VectorEntry is one embedded chunk. Entries carry the chunk text so
// search results can be displayed without a round trip to the documents
// table.
type VectorEntry struct {
	DocID      int64
	ChunkIndex int
	ChunkText  string
	Vector     []float32
}

// KeywordResult is a single keyword search hit, best-first ordered.
// Score is the negated FTS5 bm25() value (higher is better); only rank
// order is comparable across backends.
type KeywordResult struct {
	DocID   int64
	Score   float64
	Snippet string
}

// VectorResult is a single nearest-neighbor hit, best-first ordered.
type VectorResult struct {
	DocID      int64
	ChunkIndex int
	ChunkText  string
	Similarity float32
}

// KeywordStats summarizes the keyword store contents.
type KeywordStats struct {
	DocumentCount int
	Frameworks    map[string]int
}

// KeywordStore indexes full document text for lexical search.
type KeywordStore interface {
	// Upsert inserts or replaces the document keyed by URL and returns
	// the (possibly new) document ID.
	Upsert(ctx context.Context, doc *Document) (int64, error)

	// Get returns the document by ID, or a not-found error.
	Get(ctx context.Context, id int64) (*Document, error)

	// GetByURL returns the document with the given URL, or a not-found
	// error.
	GetByURL(ctx context.Context, url string) (*Document, error)

	// Delete removes the document by ID. Reports whether a row existed;
	// deleting an absent ID is not an error.
	Delete(ctx context.Context, id int64) (bool, error)

	// Search returns up to limit documents matching query, best-first.
	// An empty store or an empty query yields an empty result.
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)

	// List returns all documents ordered by ID, content omitted.
	List(ctx context.Context) ([]*Document, error)

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Stats returns document count and per-framework breakdown.
	Stats(ctx context.Context) (*KeywordStats, error)

	// RebuildIndex regenerates the search index from the documents table.
	RebuildIndex(ctx context.Context) error

	Close() error
}

// VectorStore indexes chunk embeddings for nearest-neighbor search.
type VectorStore interface {
	// InsertBatch adds entries. An entry with the same (doc, chunk) pair
	// as an existing one replaces it.
	InsertBatch(ctx context.Context, entries []*VectorEntry) error

	// Search finds the limit nearest entries to the query vector,
	// best-first. An empty store yields an empty result.
	Search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error)

	// DeleteByDoc removes all entries for the document and returns how
	// many were removed. Deleting an absent document removes zero.
	DeleteByDoc(ctx context.Context, docID int64) (int, error)

	// Count returns the number of live entries.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension (768, 1536, or 3072).
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// ErrDimensionMismatch indicates a vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
