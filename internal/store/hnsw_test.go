package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSWStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(docID int64, chunkIndex int, text string, vec ...float32) *VectorEntry {
	return &VectorEntry{DocID: docID, ChunkIndex: chunkIndex, ChunkText: text, Vector: vec}
}

func TestHNSWStore_InsertAndSearch(t *testing.T) {
	s := newTestHNSWStore(t)
	ctx := context.Background()

	err := s.InsertBatch(ctx, []*VectorEntry{
		entry(1, 0, "close match", 1, 0, 0, 0),
		entry(1, 1, "orthogonal", 0, 1, 0, 0),
		entry(2, 0, "opposite", -1, 0, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int64(1), results[0].DocID)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, "close match", results[0].ChunkText)
	assert.InDelta(t, 1.0, float64(results[0].Similarity), 1e-5)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestHNSWStore_SearchEmptyStore(t *testing.T) {
	s := newTestHNSWStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestHNSWStore(t)
	ctx := context.Background()

	err := s.InsertBatch(ctx, []*VectorEntry{entry(1, 0, "short", 1, 0)})
	require.Error(t, err)
	assert.ErrorContains(t, err, "dimension mismatch")

	_, err = s.Search(ctx, []float32{1, 0}, 5)
	require.Error(t, err)
}

func TestHNSWStore_ReplaceSameChunk(t *testing.T) {
	s := newTestHNSWStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBatch(ctx, []*VectorEntry{entry(1, 0, "old text", 1, 0, 0, 0)}))
	require.NoError(t, s.InsertBatch(ctx, []*VectorEntry{entry(1, 0, "new text", 1, 0, 0, 0)}))

	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new text", results[0].ChunkText)

	stats := s.Stats()
	assert.Equal(t, 1, stats.LiveEntries)
	assert.Equal(t, 1, stats.Orphans)
}

func TestHNSWStore_DeleteByDoc(t *testing.T) {
	s := newTestHNSWStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertBatch(ctx, []*VectorEntry{
		entry(1, 0, "doc one a", 1, 0, 0, 0),
		entry(1, 1, "doc one b", 0.9, 0.1, 0, 0),
		entry(2, 0, "doc two", 0, 1, 0, 0),
	}))

	removed, err := s.DeleteByDoc(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Count())

	// Deleted vectors must not surface in search.
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, int64(1), r.DocID)
	}

	// Idempotent: absent document removes zero without error.
	removed, err = s.DeleteByDoc(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, s.InsertBatch(ctx, []*VectorEntry{
		entry(7, 0, "persisted chunk", 1, 0, 0, 0),
		entry(7, 1, "another chunk", 0, 1, 0, 0),
	}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	loaded, err := OpenHNSWStore(path, VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	assert.Equal(t, 2, loaded.Count())

	results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(7), results[0].DocID)
	assert.Equal(t, "persisted chunk", results[0].ChunkText)

	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}

func TestOpenHNSWStore_FreshWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := OpenHNSWStore(path, VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.Zero(t, s.Count())
}

func TestHNSWStore_ClosedOperationsFail(t *testing.T) {
	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.InsertBatch(context.Background(), []*VectorEntry{entry(1, 0, "x", 1, 0, 0, 0)})
	require.Error(t, err)
	_, err = s.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.Error(t, err)
	assert.Zero(t, s.Count())
}
