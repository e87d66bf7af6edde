package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PALAN-K/palank-rag/internal/chunk"
	"github.com/PALAN-K/palank-rag/internal/embed"
	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
	"github.com/PALAN-K/palank-rag/internal/store"
)

// Retriever orchestrates the hybrid pipeline: documents go into the
// keyword store whole and into the vector store as embedded chunks;
// queries fan out to both legs and merge through RRF.
//
// The retriever owns the chunk and vector lifecycle. The stores hold no
// fusion logic and never call each other.
type Retriever struct {
	keyword  store.KeywordStore
	vector   store.VectorStore
	embedder embed.Embedder
	chunker  chunk.Chunker
	config   RetrieverConfig
	fusion   *rrfFusion
}

// NewRetriever creates a hybrid retriever. All dependencies are required.
func NewRetriever(
	keyword store.KeywordStore,
	vector store.VectorStore,
	embedder embed.Embedder,
	chunker chunk.Chunker,
	config RetrieverConfig,
) (*Retriever, error) {
	if keyword == nil {
		return nil, fmt.Errorf("%w: keyword store is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if chunker == nil {
		return nil, fmt.Errorf("%w: chunker is required", ErrNilDependency)
	}
	if config.Overfetch < 1 {
		config.Overfetch = DefaultRetrieverConfig().Overfetch
	}

	return &Retriever{
		keyword:  keyword,
		vector:   vector,
		embedder: embedder,
		chunker:  chunker,
		config:   config,
		fusion:   newRRFFusion(config.RRFConstant),
	}, nil
}

// AddDocument ingests a document: upsert into the keyword store, chunk
// the content, embed each chunk sequentially through the shared rate
// limiter, and batch-insert the vectors. Returns the assigned doc ID.
//
// There is no cross-store transaction. An embedding failure aborts the
// remaining chunks and propagates; vectors inserted for earlier chunks
// stay behind. The operation is at-least-once: re-ingesting the same URL
// replaces the keyword row and regenerates all vectors, so a full retry
// converges.
func (r *Retriever) AddDocument(ctx context.Context, doc *store.Document) (int64, error) {
	start := time.Now()

	// A replaced URL may come back under a fresh doc ID, which would
	// orphan the old ID's vectors. Purge them before the upsert.
	if prev, err := r.keyword.GetByURL(ctx, doc.URL); err == nil {
		removed, derr := r.vector.DeleteByDoc(ctx, prev.ID)
		if derr != nil {
			return 0, fmt.Errorf("purge stale vectors for %s: %w", doc.URL, derr)
		}
		if removed > 0 {
			slog.Debug("stale_vectors_purged",
				slog.Int64("doc_id", prev.ID),
				slog.Int("removed", removed))
		}
	} else if !ragerrors.IsNotFound(err) {
		return 0, err
	}

	docID, err := r.keyword.Upsert(ctx, doc)
	if err != nil {
		return 0, err
	}

	chunks := r.chunker.Chunk(doc.Content)
	if len(chunks) == 0 {
		// A document may legitimately have no embeddable text.
		slog.Debug("document_has_no_chunks", slog.Int64("doc_id", docID), slog.String("url", doc.URL))
		return docID, nil
	}

	// Sequential by contract: the shared rate limiter serializes the
	// batch, and the upstream quota assumes serialized traffic.
	entries := make([]*store.VectorEntry, 0, len(chunks))
	for i, text := range chunks {
		vector, err := r.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d/%d of %s: %w", i+1, len(chunks), doc.URL, err)
		}
		entries = append(entries, &store.VectorEntry{
			DocID:      docID,
			ChunkIndex: i,
			ChunkText:  text,
			Vector:     vector,
		})
	}

	if err := r.vector.InsertBatch(ctx, entries); err != nil {
		return 0, fmt.Errorf("insert vectors for %s: %w", doc.URL, err)
	}

	slog.Info("document_ingested",
		slog.Int64("doc_id", docID),
		slog.String("url", doc.URL),
		slog.Int("chunks", len(chunks)),
		slog.Duration("elapsed", time.Since(start)))

	return docID, nil
}

// DeleteDocument removes a document from both stores. Vectors go first:
// the reverse order could leave embeddings that still match queries for
// a document keyword search no longer knows. Reports whether the keyword
// row existed.
func (r *Retriever) DeleteDocument(ctx context.Context, docID int64) (bool, error) {
	removed, err := r.vector.DeleteByDoc(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("delete vectors for doc %d: %w", docID, err)
	}

	existed, err := r.keyword.Delete(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("delete document %d: %w", docID, err)
	}

	slog.Info("document_deleted",
		slog.Int64("doc_id", docID),
		slog.Bool("existed", existed),
		slog.Int("vectors_removed", removed))

	return existed, nil
}

// Search runs both legs with an over-fetch factor, fuses the ranked
// lists with RRF, and returns the top limit results with provenance and
// document metadata attached.
//
// The legs share no mutable state, so they run concurrently. Either leg
// failing fails the whole query: a silently missing leg would skew the
// fused ranking, so errors surface to the caller instead.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]*FusedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*FusedResult{}, nil
	}

	fetch := limit * r.config.Overfetch

	var keywordResults []*store.KeywordResult
	var vectorResults []*store.VectorResult
	var keywordErr, vectorErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keywordResults, keywordErr = r.keyword.Search(gctx, query, fetch)
		return keywordErr
	})
	g.Go(func() error {
		vectorResults, vectorErr = r.searchVectors(gctx, query, fetch)
		return vectorErr
	})
	_ = g.Wait()

	if err := errors.Join(keywordErr, vectorErr); err != nil {
		return nil, err
	}

	fused := r.fusion.fuse(keywordResults, vectorResults)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	r.attachMetadata(ctx, fused)
	return fused, nil
}

// searchVectors embeds the query and runs the vector leg.
func (r *Retriever) searchVectors(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.vector.Search(ctx, queryVector, limit)
}

// SearchKeywordOnly bypasses fusion and reports the keyword backend's
// native ranking, with scores normalized to a positive within-method
// scale (raw BM25 values may be negative).
func (r *Retriever) SearchKeywordOnly(ctx context.Context, query string, limit int) ([]*FusedResult, error) {
	hits, err := r.keyword.Search(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, err
	}

	results := make([]*FusedResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &FusedResult{
			DocID:      hit.DocID,
			Snippet:    hit.Snippet,
			Score:      normalizeKeywordScore(hit.Score),
			Provenance: ProvenanceKeyword,
		})
	}

	r.attachMetadata(ctx, results)
	return results, nil
}

// SearchVectorOnly bypasses fusion and reports the vector backend's
// native similarity ordering.
func (r *Retriever) SearchVectorOnly(ctx context.Context, query string, limit int) ([]*FusedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*FusedResult{}, nil
	}

	hits, err := r.searchVectors(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*FusedResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &FusedResult{
			DocID:      hit.DocID,
			ChunkText:  hit.ChunkText,
			Score:      float64(hit.Similarity),
			Provenance: ProvenanceVector,
		})
	}

	r.attachMetadata(ctx, results)
	return results, nil
}

// attachMetadata resolves URL and title for each result. Every hit should
// reference an existing document, but a lookup miss degrades to empty
// metadata instead of failing the whole query: a half-deleted document
// must not break search for everything else.
func (r *Retriever) attachMetadata(ctx context.Context, results []*FusedResult) {
	for _, result := range results {
		doc, err := r.keyword.Get(ctx, result.DocID)
		if err != nil {
			slog.Warn("result_metadata_missing",
				slog.Int64("doc_id", result.DocID),
				slog.String("error", err.Error()))
			continue
		}
		result.URL = doc.URL
		result.Title = doc.Title
	}
}

// Stats reports the state of both stores.
func (r *Retriever) Stats(ctx context.Context) (*Stats, error) {
	keywordStats, err := r.keyword.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		DocumentCount: keywordStats.DocumentCount,
		VectorCount:   r.vector.Count(),
		Frameworks:    keywordStats.Frameworks,
	}, nil
}

// Close releases both stores and the embedder.
func (r *Retriever) Close() error {
	return errors.Join(
		r.keyword.Close(),
		r.vector.Close(),
		r.embedder.Close(),
	)
}
