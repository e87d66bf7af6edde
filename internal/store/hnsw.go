package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore implements VectorStore on the coder/hnsw pure Go HNSW graph.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	// Graph keys map to chunk metadata; docKeys indexes keys per document
	// so DeleteByDoc does not scan the whole store.
	entries map[uint64]entryMeta
	docKeys map[int64][]uint64
	nextKey uint64

	closed bool
}

// entryMeta is what the graph key resolves to at search time.
type entryMeta struct {
	DocID      int64
	ChunkIndex int
	ChunkText  string
}

// hnswSnapshot is the gob-persisted sidecar next to the graph file.
type hnswSnapshot struct {
	Entries map[uint64]entryMeta
	NextKey uint64
	Config  VectorStoreConfig
}

// Verify interface implementation at compile time
var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates an empty HNSW-based vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector store dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:   graph,
		config:  cfg,
		entries: make(map[uint64]entryMeta),
		docKeys: make(map[int64][]uint64),
	}, nil
}

// InsertBatch adds entries to the graph. An entry with the same
// (doc, chunk) pair as an existing one replaces it via lazy deletion:
// the old graph node is orphaned, not removed, because coder/hnsw cannot
// safely delete the last node.
func (s *HNSWStore) InsertBatch(ctx context.Context, entries []*VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, e := range entries {
		if len(e.Vector) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(e.Vector)}
		}
	}

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.dropChunk(e.DocID, e.ChunkIndex)

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.entries[key] = entryMeta{DocID: e.DocID, ChunkIndex: e.ChunkIndex, ChunkText: e.ChunkText}
		s.docKeys[e.DocID] = append(s.docKeys[e.DocID], key)
	}

	return nil
}

// dropChunk lazily deletes the entry for (docID, chunkIndex) if present.
func (s *HNSWStore) dropChunk(docID int64, chunkIndex int) {
	keys := s.docKeys[docID]
	for i, key := range keys {
		if s.entries[key].ChunkIndex == chunkIndex {
			delete(s.entries, key)
			s.docKeys[docID] = append(keys[:i], keys[i+1:]...)
			if len(s.docKeys[docID]) == 0 {
				delete(s.docKeys, docID)
			}
			return
		}
	}
}

// Search finds the limit nearest live entries to the query vector.
func (s *HNSWStore) Search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 || limit <= 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalized)
	}

	// Over-fetch to compensate for lazily deleted nodes still in the graph.
	orphans := s.graph.Len() - len(s.entries)
	nodes := s.graph.Search(normalized, limit+orphans)

	results := make([]*VectorResult, 0, limit)
	for _, node := range nodes {
		meta, live := s.entries[node.Key]
		if !live {
			continue
		}

		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			DocID:      meta.DocID,
			ChunkIndex: meta.ChunkIndex,
			ChunkText:  meta.ChunkText,
			Similarity: distanceToScore(distance, s.config.Metric),
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// DeleteByDoc removes all entries for the document via lazy deletion and
// returns how many were removed. Absent documents remove zero.
func (s *HNSWStore) DeleteByDoc(ctx context.Context, docID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	keys := s.docKeys[docID]
	for _, key := range keys {
		delete(s.entries, key)
	}
	delete(s.docKeys, docID)

	return len(keys), nil
}

// Count returns the number of live entries.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.entries)
}

// HNSWStats reports store health, including nodes orphaned by lazy
// deletion that a rebuild would reclaim.
type HNSWStats struct {
	LiveEntries int
	GraphNodes  int
	Orphans     int
	Dimensions  int
}

// Stats returns store statistics.
func (s *HNSWStore) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return HNSWStats{}
	}
	return HNSWStats{
		LiveEntries: len(s.entries),
		GraphNodes:  s.graph.Len(),
		Orphans:     s.graph.Len() - len(s.entries),
		Dimensions:  s.config.Dimensions,
	}
}

// Close marks the store closed. Idempotent. Persisting the graph is the
// caller's job via Save; Close itself writes nothing.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Save persists the graph and its metadata sidecar atomically
// (temp file + rename).
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveSnapshot(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// saveSnapshot writes the metadata sidecar with temp-file + rename.
func (s *HNSWStore) saveSnapshot(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	snap := hnswSnapshot{
		Entries: s.entries,
		NextKey: s.nextKey,
		Config:  s.config,
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load restores the graph and metadata from a prior Save.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := s.loadSnapshot(path + ".meta"); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close index file", slog.String("error", err.Error()))
		}
	}()

	// coder/hnsw Import requires an io.ByteReader
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	return nil
}

// loadSnapshot reads the metadata sidecar and rebuilds the doc index.
func (s *HNSWStore) loadSnapshot(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var snap hnswSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}

	s.entries = snap.Entries
	s.nextKey = snap.NextKey
	s.config = snap.Config
	s.docKeys = make(map[int64][]uint64)
	for key, meta := range s.entries {
		s.docKeys[meta.DocID] = append(s.docKeys[meta.DocID], key)
	}

	return nil
}

// OpenHNSWStore loads the store at path, or returns a fresh one when no
// snapshot exists. A corrupt snapshot is discarded with a warning rather
// than blocking startup; the vectors are regenerable from document text.
func OpenHNSWStore(path string, cfg VectorStoreConfig) (*HNSWStore, error) {
	store, err := NewHNSWStore(cfg)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return store, nil
	}

	if err := store.Load(path); err != nil {
		slog.Warn("vector_snapshot_corrupt",
			slog.String("path", path),
			slog.String("error", err.Error()))
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return NewHNSWStore(cfg)
	}

	return store, nil
}

// ReadHNSWStoreDimensions reads the dimensions recorded in an existing
// snapshot. Returns 0 when no snapshot exists (fresh start).
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	file, err := os.Open(vectorPath + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open hnsw metadata: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close hnsw metadata file", slog.String("error", err.Error()))
		}
	}()

	var snap hnswSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return 0, fmt.Errorf("failed to decode hnsw metadata: %w", err)
	}
	return snap.Config.Dimensions, nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance to a similarity score in [0, 1].
// Cosine distance ranges 0-2; L2 ranges 0 to infinity.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
