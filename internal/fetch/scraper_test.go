package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

func fastScraper() *Scraper {
	return NewScraper(ScraperConfig{
		RequestsPerSecond: 1000,
		Burst:             1000,
		Timeout:           5 * time.Second,
	})
}

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

const filler = "Plenty of additional prose follows so the candidate region clears the minimum content length threshold for extraction."

func TestScraper_TitleFromTitleTag(t *testing.T) {
	server := serveHTML(t, `<html><head><title>  React Hooks Guide </title></head>
		<body><article>Hooks let you use state. `+filler+`</article></body></html>`)

	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "React Hooks Guide", page.Title)
	assert.Contains(t, page.Content, "Hooks let you use state.")
}

func TestScraper_TitleFallbackChain(t *testing.T) {
	// Empty <title> falls through to the first <h1>.
	server := serveHTML(t, `<html><head><title>  </title></head>
		<body><h1>Heading Title</h1><article>`+filler+`</article></body></html>`)
	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", page.Title)

	// No <title>, no <h1>: og:title meta wins.
	server2 := serveHTML(t, `<html><head><meta property="og:title" content="Social Title"></head>
		<body><article>`+filler+`</article></body></html>`)
	page, err = fastScraper().Scrape(context.Background(), server2.URL)
	require.NoError(t, err)
	assert.Equal(t, "Social Title", page.Title)
}

func TestScraper_ContentSelectorPriority(t *testing.T) {
	// <article> outranks surrounding nav/footer noise.
	server := serveHTML(t, `<html><body>
		<nav>Navigation menu that should never appear in results</nav>
		<article>The main article body. `+filler+`</article>
		<footer>Footer boilerplate</footer>
	</body></html>`)

	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "The main article body.")
	assert.NotContains(t, page.Content, "Navigation menu")
	assert.NotContains(t, page.Content, "Footer boilerplate")
}

func TestScraper_ContentClassAndIDSelectors(t *testing.T) {
	server := serveHTML(t, `<html><body>
		<div class="sidebar">Sidebar text</div>
		<div class="content">Class-selected content region. `+filler+`</div>
	</body></html>`)
	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "Class-selected content region.")
	assert.NotContains(t, page.Content, "Sidebar text")

	server2 := serveHTML(t, `<html><body>
		<div id="content">ID-selected content region. `+filler+`</div>
	</body></html>`)
	page, err = fastScraper().Scrape(context.Background(), server2.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "ID-selected content region.")
}

func TestScraper_ShortRegionFallsThroughToBody(t *testing.T) {
	// The article is under the length threshold; the body as a whole
	// carries enough text and wins.
	server := serveHTML(t, `<html><body>
		<article>Too short.</article>
		<p>`+filler+`</p>
	</body></html>`)

	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "Too short.")
	assert.Contains(t, page.Content, "additional prose")
}

func TestScraper_StripsScriptAndStyle(t *testing.T) {
	server := serveHTML(t, `<html><body><article>
		Visible text stays. `+filler+`
		<script>var hidden = "never shown";</script>
		<style>.x { color: red }</style>
	</article></body></html>`)

	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "Visible text stays.")
	assert.NotContains(t, page.Content, "never shown")
	assert.NotContains(t, page.Content, "color: red")
}

func TestScraper_CollapsesWhitespace(t *testing.T) {
	server := serveHTML(t, "<html><body><article>Spaced\n\n\t  out    words. "+filler+"</article></body></html>")

	page, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Content, "Spaced out words.")
	assert.False(t, strings.Contains(page.Content, "  "), "no double spaces survive")
}

func TestScraper_RejectsBadURLs(t *testing.T) {
	s := fastScraper()
	for _, u := range []string{"", "not-a-url", "ftp://example.com/file", "file:///etc/passwd"} {
		_, err := s.Scrape(context.Background(), u)
		require.Error(t, err, u)
		assert.Equal(t, ragerrors.ErrCodeInvalidURL, ragerrors.GetCode(err), u)
	}
}

func TestScraper_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := fastScraper().Scrape(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeScrapeFailed, ragerrors.GetCode(err))
	assert.Contains(t, err.Error(), "404")
}

func TestScraper_SendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html><body><article>" + filler + "</article></body></html>"))
	}))
	defer server.Close()

	_, err := fastScraper().Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, gotUA)
}

func TestScraper_PolitenessLimiterPacesRequests(t *testing.T) {
	server := serveHTML(t, "<html><body><article>"+filler+"</article></body></html>")

	// 50 req/s with burst 1: the second fetch waits ~20ms.
	s := NewScraper(ScraperConfig{RequestsPerSecond: 50, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	_, err := s.Scrape(ctx, server.URL)
	require.NoError(t, err)
	_, err = s.Scrape(ctx, server.URL)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}
