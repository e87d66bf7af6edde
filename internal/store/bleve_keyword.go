package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"

	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

// bleveSnippetWindow bounds the snippet extracted around the first match.
const bleveSnippetWindow = 200

// BleveKeywordStore is the legacy KeywordStore backend. The Bleve index
// holds the searchable text; document rows and the URL uniqueness map
// live in a gob sidecar, since Bleve stores no relational metadata.
// Single-process only: BoltDB takes an exclusive file lock.
type BleveKeywordStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool

	docs   map[int64]*Document
	urls   map[string]int64
	nextID int64
}

// bleveDocument is the shape indexed into Bleve.
type bleveDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// bleveSidecar is the gob-persisted document table.
type bleveSidecar struct {
	Docs   map[int64]*Document
	NextID int64
}

// Verify interface implementation at compile time
var _ KeywordStore = (*BleveKeywordStore)(nil)

// NewBleveKeywordStore opens (or creates) a Bleve keyword store at path.
// If path is empty, an in-memory store is created for testing.
func NewBleveKeywordStore(path string) (*BleveKeywordStore, error) {
	var idx bleve.Index
	var err error

	if path == "" {
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, ragerrors.StorageError("failed to open bleve index", err)
	}

	s := &BleveKeywordStore{
		index:  idx,
		path:   path,
		docs:   make(map[int64]*Document),
		urls:   make(map[string]int64),
		nextID: 1,
	}

	if path != "" {
		if err := s.loadSidecar(); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}

	return s, nil
}

// sidecarPath returns the gob file holding document rows.
func (s *BleveKeywordStore) sidecarPath() string {
	return s.path + ".docs"
}

func (s *BleveKeywordStore) loadSidecar() error {
	file, err := os.Open(s.sidecarPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return ragerrors.StorageError("failed to open document sidecar", err)
	}
	defer func() { _ = file.Close() }()

	var side bleveSidecar
	if err := gob.NewDecoder(file).Decode(&side); err != nil {
		return ragerrors.New(ragerrors.ErrCodeCorruptIndex, "document sidecar is corrupt", err)
	}

	s.docs = side.Docs
	s.nextID = side.NextID
	for id, doc := range s.docs {
		s.urls[doc.URL] = id
	}
	return nil
}

// saveSidecar persists document rows with temp-file + rename.
func (s *BleveKeywordStore) saveSidecar() error {
	if s.path == "" {
		return nil
	}

	tmpPath := s.sidecarPath() + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return ragerrors.StorageError("failed to create sidecar file", err)
	}

	side := bleveSidecar{Docs: s.docs, NextID: s.nextID}
	if err := gob.NewEncoder(file).Encode(side); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return ragerrors.StorageError("failed to encode sidecar", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ragerrors.StorageError("failed to close sidecar file", err)
	}
	return os.Rename(tmpPath, s.sidecarPath())
}

// Upsert inserts or replaces the document keyed by URL. Unlike the SQLite
// backend, replacement reuses the existing ID; callers purge vectors by
// the returned ID either way.
func (s *BleveKeywordStore) Upsert(ctx context.Context, doc *Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	if doc.URL == "" {
		return 0, ragerrors.New(ragerrors.ErrCodeInvalidURL, "document url is empty", nil)
	}

	id, exists := s.urls[doc.URL]
	if !exists {
		id = s.nextID
		s.nextID++
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if err := s.index.Index(strconv.FormatInt(id, 10), bleveDocument{
		Title:   doc.Title,
		Content: doc.Content,
	}); err != nil {
		return 0, ragerrors.StorageError("failed to index document", err)
	}

	stored := *doc
	stored.ID = id
	s.docs[id] = &stored
	s.urls[doc.URL] = id
	doc.ID = id

	if err := s.saveSidecar(); err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns the document by ID.
func (s *BleveKeywordStore) Get(ctx context.Context, id int64) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	doc, ok := s.docs[id]
	if !ok {
		return nil, ragerrors.NotFound(fmt.Sprintf("id %d", id))
	}
	copied := *doc
	return &copied, nil
}

// GetByURL returns the document with the given URL.
func (s *BleveKeywordStore) GetByURL(ctx context.Context, url string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	id, ok := s.urls[url]
	if !ok {
		return nil, ragerrors.NotFound(url)
	}
	copied := *s.docs[id]
	return &copied, nil
}

// Delete removes the document by ID and reports whether a row existed.
func (s *BleveKeywordStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	doc, ok := s.docs[id]
	if !ok {
		return false, nil
	}

	if err := s.index.Delete(strconv.FormatInt(id, 10)); err != nil {
		return false, ragerrors.StorageError("failed to delete from index", err)
	}
	delete(s.urls, doc.URL)
	delete(s.docs, id)

	if err := s.saveSidecar(); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns up to limit documents matching query, best-first by
// Bleve's tf-idf scoring.
func (s *BleveKeywordStore) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*KeywordResult{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, ragerrors.StorageError("keyword search failed", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		doc, ok := s.docs[id]
		if !ok {
			continue
		}
		results = append(results, &KeywordResult{
			DocID:   id,
			Score:   hit.Score,
			Snippet: extractSnippet(doc.Content, query),
		})
	}
	return results, nil
}

// List returns all documents ordered by ID, content omitted.
func (s *BleveKeywordStore) List(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	docs := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		copied := *doc
		copied.Content = ""
		docs = append(docs, &copied)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Count returns the number of indexed documents.
func (s *BleveKeywordStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	return len(s.docs), nil
}

// Stats returns document count and per-framework breakdown.
func (s *BleveKeywordStore) Stats(ctx context.Context) (*KeywordStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	stats := &KeywordStats{
		DocumentCount: len(s.docs),
		Frameworks:    map[string]int{},
	}
	for _, doc := range s.docs {
		if doc.Framework != "" {
			stats.Frameworks[doc.Framework]++
		}
	}
	return stats, nil
}

// RebuildIndex reindexes every document row into Bleve.
func (s *BleveKeywordStore) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	batch := s.index.NewBatch()
	for id, doc := range s.docs {
		if err := batch.Index(strconv.FormatInt(id, 10), bleveDocument{
			Title:   doc.Title,
			Content: doc.Content,
		}); err != nil {
			return ragerrors.StorageError("failed to batch document", err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return ragerrors.StorageError("failed to rebuild index", err)
	}

	slog.Info("keyword_index_rebuilt", slog.String("path", s.path), slog.String("backend", "bleve"))
	return nil
}

// Close closes the index. Idempotent.
func (s *BleveKeywordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

// extractSnippet returns a window of content around the first occurrence
// of any query term, falling back to the content head when nothing
// matches (Bleve scored the hit on stemmed forms we cannot locate).
func extractSnippet(content, query string) string {
	lower := strings.ToLower(content)
	pos := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(lower, term); i >= 0 && (pos == -1 || i < pos) {
			pos = i
		}
	}

	start := 0
	if pos > bleveSnippetWindow/2 {
		start = pos - bleveSnippetWindow/2
	}
	end := start + bleveSnippetWindow
	if end > len(content) {
		end = len(content)
	}

	// The window is in bytes; keep both cuts off multi-byte runes.
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}
