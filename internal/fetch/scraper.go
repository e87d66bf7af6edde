// Package fetch scrapes web pages into plain-text documents: title and
// main-content extraction over a parsed DOM, with a politeness limiter
// between requests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

// Scraper defaults.
const (
	DefaultUserAgent      = "palank-rag/0.1"
	DefaultTimeout        = 30 * time.Second
	DefaultRequestsPerSec = 1.0
	DefaultBurst          = 1

	// maxBodyBytes caps the response read so a hostile page cannot
	// exhaust memory.
	maxBodyBytes = 10 << 20

	// minContentLength is the threshold below which a candidate content
	// region is skipped in favor of the next selector.
	minContentLength = 100
)

// ScrapedPage is the extracted result for one URL.
type ScrapedPage struct {
	URL     string
	Title   string
	Content string
}

// ScraperConfig tunes the HTTP client and the politeness limiter.
type ScraperConfig struct {
	UserAgent string
	Timeout   time.Duration

	// RequestsPerSecond and Burst feed the token bucket that paces
	// consecutive fetches against the same process.
	RequestsPerSecond float64
	Burst             int
}

// DefaultScraperConfig returns the standard scraper tuning.
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		UserAgent:         DefaultUserAgent,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: DefaultRequestsPerSec,
		Burst:             DefaultBurst,
	}
}

// Scraper fetches pages and extracts title plus main content.
type Scraper struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewScraper creates a scraper with the given config; zero values fall
// back to defaults.
func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	return &Scraper{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent: cfg.UserAgent,
	}
}

// Scrape fetches rawURL and extracts a title and the main text content.
// The politeness limiter is applied before every request.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*ScrapedPage, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, ragerrors.New(ragerrors.ErrCodeInvalidURL,
			fmt.Sprintf("not a fetchable URL: %s", rawURL), err).
			WithSuggestion("URLs must start with http:// or https://")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	slog.Info("scraping_url", slog.String("url", rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeScrapeFailed, "failed to build request", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ragerrors.New(ragerrors.ErrCodeScrapeFailed,
			fmt.Sprintf("request failed: %s", rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ragerrors.New(ragerrors.ErrCodeScrapeFailed,
			fmt.Sprintf("unexpected status %d for %s", resp.StatusCode, rawURL), nil)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ragerrors.New(ragerrors.ErrCodeScrapeFailed, "failed to parse HTML", err)
	}

	page := &ScrapedPage{
		URL:     rawURL,
		Title:   extractTitle(doc),
		Content: extractContent(doc),
	}

	slog.Debug("page_scraped",
		slog.String("url", rawURL),
		slog.String("title", page.Title),
		slog.Int("content_bytes", len(page.Content)))

	return page, nil
}

// extractTitle resolves the page title: <title>, then the first <h1>,
// then the og:title meta property.
func extractTitle(doc *html.Node) string {
	if n := findFirst(doc, matchTag(atom.Title)); n != nil {
		if title := collapseWhitespace(nodeText(n)); title != "" {
			return title
		}
	}
	if n := findFirst(doc, matchTag(atom.H1)); n != nil {
		if title := collapseWhitespace(nodeText(n)); title != "" {
			return title
		}
	}
	if n := findFirst(doc, matchMetaProperty("og:title")); n != nil {
		if title := strings.TrimSpace(attrValue(n, "content")); title != "" {
			return title
		}
	}
	return ""
}

// extractContent walks the selector chain and returns the first region
// whose stripped text exceeds the minimum length, falling back to the
// whole body regardless of length.
func extractContent(doc *html.Node) string {
	selectors := []func(*html.Node) bool{
		matchTag(atom.Article),
		matchTag(atom.Main),
		matchClass("content"),
		matchID("content"),
		matchClass("post-content"),
		matchTag(atom.Body),
	}

	for _, match := range selectors {
		if n := findFirst(doc, match); n != nil {
			if text := collapseWhitespace(nodeText(n)); len(text) > minContentLength {
				return text
			}
		}
	}

	if n := findFirst(doc, matchTag(atom.Body)); n != nil {
		return collapseWhitespace(nodeText(n))
	}
	return ""
}

func matchTag(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func matchClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range strings.Fields(attrValue(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func matchID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrValue(n, "id") == id
	}
}

func matchMetaProperty(property string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Meta &&
			attrValue(n, "property") == property
	}
}

// findFirst returns the first node in document order matching the
// predicate.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates the text content under n, skipping script and
// style subtrees.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collapseWhitespace squashes all whitespace runs to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
