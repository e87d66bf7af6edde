package embed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder is a deterministic in-memory Embedder that counts
// upstream calls so cache behavior is observable.
type countingEmbedder struct {
	dims   int
	model  string
	calls  int
	failOn string // text that triggers an error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{dims: 4, model: "counting-test"}
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == c.failOn && text != "" {
		return nil, fmt.Errorf("embed %q: induced failure", text)
	}
	c.calls++
	vec := make([]float32, c.dims)
	for i, r := range text {
		vec[i%c.dims] += float32(r)
	}
	return vec, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (c *countingEmbedder) Dimensions() int                  { return c.dims }
func (c *countingEmbedder) ModelName() string                { return c.model }
func (c *countingEmbedder) Available(_ context.Context) bool { return true }
func (c *countingEmbedder) Close() error                     { return nil }

func TestCachedEmbedder_HitSkipsUpstream(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedderWithDefaults(inner)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "how do I use hooks")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "how do I use hooks")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call must be served from cache")

	_, err = cached.Embed(ctx, "a different query")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedder_BatchPartialOverlap(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedderWithDefaults(inner)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	results, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "alpha", "gamma"})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, results[0], results[2])
	// Only beta and gamma hit upstream.
	assert.Equal(t, 3, inner.calls)

	empty, err := cached.EmbedBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := newCountingEmbedder()
	inner.failOn = "broken"
	cached := NewCachedEmbedderWithDefaults(inner)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "broken")
	require.Error(t, err)

	// Once the upstream recovers, the same text embeds cleanly.
	inner.failOn = ""
	vec, err := cached.Embed(ctx, "broken")
	require.NoError(t, err)
	assert.Len(t, vec, inner.dims)
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := cached.Embed(ctx, text)
		require.NoError(t, err)
	}
	require.Equal(t, 3, inner.calls)

	// "one" was evicted by the 2-entry cap; re-embedding it hits upstream.
	_, err := cached.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)

	// "three" is still resident.
	_, err = cached.Embed(ctx, "three")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := newCountingEmbedder()
	cached := NewCachedEmbedderWithDefaults(inner)

	assert.Equal(t, inner.dims, cached.Dimensions())
	assert.Equal(t, inner.model, cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.NoError(t, cached.Close())
}
