package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteKeywordStore {
	t.Helper()
	s, err := NewSQLiteKeywordStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteKeywordStore_UpsertAssignsID(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Upsert(ctx, &Document{
		URL:     "https://example.com/go-concurrency",
		Title:   "Go Concurrency Patterns",
		Content: "Goroutines and channels make concurrent programming tractable.",
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	doc, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency Patterns", doc.Title)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestSQLiteKeywordStore_UpsertReplacesByURL(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, &Document{URL: "https://example.com/doc", Content: "first version"})
	require.NoError(t, err)

	second, err := s.Upsert(ctx, &Document{URL: "https://example.com/doc", Content: "second version"})
	require.NoError(t, err)

	// One row per URL, whatever the replacement rowid is.
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	doc, err := s.GetByURL(ctx, "https://example.com/doc")
	require.NoError(t, err)
	assert.Equal(t, "second version", doc.Content)
	assert.Equal(t, second, doc.ID)

	// The old search row must not linger in the FTS mirror.
	results, err := s.Search(ctx, "first version", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, first, r.DocID, "stale FTS row for replaced document")
	}
}

func TestSQLiteKeywordStore_UpsertRejectsEmptyURL(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Upsert(context.Background(), &Document{Content: "no url"})
	require.Error(t, err)
}

func TestSQLiteKeywordStore_GetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Get(context.Background(), 999)
	require.Error(t, err)

	_, err = s.GetByURL(context.Background(), "https://nowhere.invalid")
	require.Error(t, err)
}

func TestSQLiteKeywordStore_DeleteReportsExistence(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Upsert(ctx, &Document{URL: "https://example.com/doc", Content: "text"})
	require.NoError(t, err)

	existed, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	// Idempotent: deleting again is not an error.
	existed, err = s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, existed)

	results, err := s.Search(ctx, "text", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteKeywordStore_SearchRanksRelevant(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &Document{
		URL:     "https://example.com/channels",
		Title:   "Channels",
		Content: "Channels carry values between goroutines. Buffered channels decouple senders.",
	})
	require.NoError(t, err)
	other, err := s.Upsert(ctx, &Document{
		URL:     "https://example.com/maps",
		Title:   "Maps",
		Content: "Maps are unordered collections keyed by comparable types.",
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, "buffered channels", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.NotEqual(t, other, results[0].DocID)
	assert.Positive(t, results[0].Score)
	assert.Contains(t, results[0].Snippet, "<b>")
}

func TestSQLiteKeywordStore_SearchDegenerateInputs(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// Empty store
	results, err := s.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Empty and whitespace-only queries
	for _, q := range []string{"", "   "} {
		results, err := s.Search(ctx, q, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	}

	// Pure punctuation escapes to nothing
	results, err = s.Search(ctx, `"(*&^%$`, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteKeywordStore_SearchEscapesOperators(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &Document{
		URL:     "https://example.com/errors",
		Content: "error handling with fmt.Errorf and errors.Is",
	})
	require.NoError(t, err)

	// Raw FTS5 operators in the query must not be interpreted.
	for _, q := range []string{`error AND handling`, `"errors.Is"`, `fmt.Errorf NOT`} {
		_, err := s.Search(ctx, q, 10)
		require.NoError(t, err, "query %q", q)
	}
}

func TestSQLiteKeywordStore_StatsAndList(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, &Document{URL: "u1", Content: "a", Framework: "react"})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &Document{URL: "u2", Content: "b", Framework: "react"})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &Document{URL: "u3", Content: "c"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 2, stats.Frameworks["react"])

	docs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Empty(t, docs[0].Content, "List should omit content")
}

func TestSQLiteKeywordStore_RebuildIndex(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Upsert(ctx, &Document{URL: "u1", Title: "T", Content: "rebuild target phrase"})
	require.NoError(t, err)

	require.NoError(t, s.RebuildIndex(ctx))

	results, err := s.Search(ctx, "rebuild target phrase", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].DocID)
}

func TestSQLiteKeywordStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")
	ctx := context.Background()

	s, err := NewSQLiteKeywordStore(path)
	require.NoError(t, err)
	id, err := s.Upsert(ctx, &Document{URL: "u1", Content: "durable content"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteKeywordStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	doc, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "durable content", doc.Content)

	results, err := reopened.Search(ctx, "durable content", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSQLiteKeywordStore_CloseIdempotent(t *testing.T) {
	s, err := NewSQLiteKeywordStore("")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Count(context.Background())
	require.Error(t, err)
}

func TestEscapeFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain terms", "hello world", `"hello" "world"`},
		{"strips operators", `go* AND (rust)`, `"go" "AND" "rust"`},
		{"keeps hyphen underscore", "chunk_index re-rank", `"chunk_index" "re-rank"`},
		{"punctuation only", `"'()`, ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeFTSQuery(tt.input))
		})
	}
}
