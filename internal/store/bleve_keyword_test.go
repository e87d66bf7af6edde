package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBleveStore(t *testing.T) *BleveKeywordStore {
	t.Helper()
	s, err := NewBleveKeywordStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBleveKeywordStore_UpsertReusesIDForSameURL(t *testing.T) {
	s := newTestBleveStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, &Document{URL: "https://example.com/doc", Content: "first version"})
	require.NoError(t, err)

	second, err := s.Upsert(ctx, &Document{URL: "https://example.com/doc", Content: "second version"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	doc, err := s.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "second version", doc.Content)
}

func TestBleveKeywordStore_SearchAndSnippet(t *testing.T) {
	s := newTestBleveStore(t)
	ctx := context.Background()

	id, err := s.Upsert(ctx, &Document{
		URL:     "https://example.com/goroutines",
		Title:   "Goroutines",
		Content: "A goroutine is a lightweight thread managed by the Go runtime.",
	})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, &Document{
		URL:     "https://example.com/unrelated",
		Content: "Nothing about concurrency here.",
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, "goroutine runtime", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].DocID)
	assert.Positive(t, results[0].Score)
	assert.Contains(t, results[0].Snippet, "goroutine")
}

func TestBleveKeywordStore_SearchDegenerateInputs(t *testing.T) {
	s := newTestBleveStore(t)
	ctx := context.Background()

	results, err := s.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveKeywordStore_DeleteIdempotent(t *testing.T) {
	s := newTestBleveStore(t)
	ctx := context.Background()

	id, err := s.Upsert(ctx, &Document{URL: "u1", Content: "content"})
	require.NoError(t, err)

	existed, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.GetByURL(ctx, "u1")
	require.Error(t, err)
}

func TestBleveKeywordStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ctx := context.Background()

	s, err := NewBleveKeywordStore(path)
	require.NoError(t, err)
	id, err := s.Upsert(ctx, &Document{URL: "u1", Title: "T", Content: "durable bleve content", Framework: "vue"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewBleveKeywordStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	doc, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "durable bleve content", doc.Content)

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.Frameworks["vue"])

	results, err := reopened.Search(ctx, "durable", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestExtractSnippet(t *testing.T) {
	content := "prefix text before the needle appears here, and a long tail follows after it."

	snippet := extractSnippet(content, "needle")
	assert.Contains(t, snippet, "needle")

	// No match falls back to the head of the content.
	snippet = extractSnippet(content, "zzzzz")
	assert.Contains(t, snippet, "prefix text")
}

func TestExtractSnippet_MultibyteBoundaries(t *testing.T) {
	// Surround the match with 3-byte runes so both window cuts land inside
	// a rune unless they get realigned.
	padding := strings.Repeat("한", 140)
	content := padding + "needle" + padding

	snippet := extractSnippet(content, "needle")
	assert.Contains(t, snippet, "needle")
	assert.True(t, utf8.ValidString(snippet), "snippet split a rune: %q", snippet)
}
