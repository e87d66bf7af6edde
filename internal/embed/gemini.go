package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

// DefaultGeminiBaseURL is the Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultGeminiModel is the default embedding model.
const DefaultGeminiModel = "gemini-embedding-001"

// taskTypeRetrievalDocument tunes embeddings for retrieval corpora.
const taskTypeRetrievalDocument = "RETRIEVAL_DOCUMENT"

// Retry and transport defaults.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2000 * time.Millisecond
	DefaultHTTPTimeout = 30 * time.Second
)

// GeminiConfig configures the Gemini embedding client.
type GeminiConfig struct {
	// APIKey authenticates requests. Resolved from GEMINI_API_KEY or
	// GOOGLE_AI_API_KEY when empty.
	APIKey string

	Model      string
	Dimensions int    // 768, 1536, or 3072
	BaseURL    string // overridable for tests

	// Sliding-window quota plus minimum spacing between calls.
	RequestsPerWindow int
	Window            time.Duration
	MinDelay          time.Duration

	// Retry policy for 429 and transport failures.
	MaxRetries  int
	BackoffBase time.Duration

	Timeout time.Duration
}

// GeminiEmbedder generates embeddings through the Gemini embedContent
// API. All calls share one rate limiter, so batch embedding is paced to
// stay inside the upstream quota.
type GeminiEmbedder struct {
	client  *http.Client
	config  GeminiConfig
	limiter *rateLimiter

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates a Gemini embedding client.
func NewGeminiEmbedder(cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		key, ok := GetAPIKey()
		if !ok {
			return nil, ragerrors.New(ragerrors.ErrCodeAPIKeyMissing,
				"API key not found", nil).
				WithSuggestion("set GEMINI_API_KEY or GOOGLE_AI_API_KEY; keys are issued at https://aistudio.google.com/app/apikey")
		}
		cfg.APIKey = key
	}

	// Apply defaults
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if !ValidDimension(cfg.Dimensions) {
		return nil, ragerrors.ConfigError(
			fmt.Sprintf("invalid embedding dimension %d: must be 768, 1536, or 3072", cfg.Dimensions), nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = DefaultRequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}

	return &GeminiEmbedder{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		limiter: newRateLimiter(cfg.RequestsPerWindow, cfg.Window, cfg.MinDelay),
	}, nil
}

// embedURL returns the embedContent endpoint for the configured model.
func (e *GeminiEmbedder) embedURL() string {
	return fmt.Sprintf("%s/models/%s:embedContent", e.config.BaseURL, e.config.Model)
}

// Embed generates an embedding for a single text. Rate-limit (429) and
// transport failures are retried with exponential backoff; any other
// upstream rejection fails immediately.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	// Empty input has no meaningful embedding; skip the quota spend.
	if strings.TrimSpace(text) == "" {
		return zeroVector(e.config.Dimensions), nil
	}

	reqBody := GeminiEmbedRequest{
		Model:                "models/" + e.config.Model,
		Content:              GeminiContent{Parts: []GeminiPart{{Text: text}}},
		TaskType:             taskTypeRetrievalDocument,
		OutputDimensionality: e.config.Dimensions,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		// Rate limiting applies before every attempt, retries included.
		if err := e.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		vector, retryable, err := e.doEmbed(ctx, body)
		if err == nil {
			return vector, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		slog.Debug("embedding attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", e.config.MaxRetries),
			slog.String("error", err.Error()))

		if attempt < e.config.MaxRetries {
			backoff := e.config.BackoffBase << attempt
			if err := sleepContext(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, ragerrors.EmbeddingError(ragerrors.ErrCodeEmbedExhausted,
		fmt.Sprintf("embedding failed after %d retries", e.config.MaxRetries), lastErr)
}

// doEmbed performs one embedContent call. The second return reports
// whether the failure may be retried (429 or transport failure).
func (e *GeminiEmbedder) doEmbed(ctx context.Context, body []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.embedURL(), bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels in a header, not the URL, so it cannot leak into
	// access logs.
	req.Header.Set("x-goog-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, ragerrors.EmbeddingError(ragerrors.ErrCodeEmbedTransport,
			"failed to send embedding request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, ragerrors.EmbeddingError(ragerrors.ErrCodeEmbedTransport,
			"failed to read embedding response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var result GeminiEmbedResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, false, fmt.Errorf("failed to decode embedding response: %w", err)
		}
		values := result.Embedding.Values
		if len(values) != e.config.Dimensions {
			return nil, false, ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", e.config.Dimensions, len(values)), nil)
		}
		return values, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, ragerrors.EmbeddingError(ragerrors.ErrCodeEmbedRateLimited,
			"rate limit exceeded (429)", nil)

	default:
		var apiErr GeminiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, false, ragerrors.EmbeddingError(ragerrors.ErrCodeEmbedRejected,
				fmt.Sprintf("Gemini API error (%s): %s", apiErr.Error.Status, apiErr.Error.Message), nil)
		}
		return nil, false, ragerrors.EmbeddingError(ragerrors.ErrCodeEmbedRejected,
			fmt.Sprintf("Gemini API error (%d): %s", resp.StatusCode, string(respBody)), nil)
	}
}

// EmbedBatch embeds texts sequentially. The shared rate limiter paces the
// calls; there is no parallel fan-out because the upstream quota assumes
// serialized traffic.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		slog.Debug("embedding batch item",
			slog.Int("index", i+1),
			slog.Int("total", len(texts)))

		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d/%d: %w", i+1, len(texts), err)
		}
		results[i] = vector
	}

	return results, nil
}

// Dimensions returns the embedding dimension
func (e *GeminiEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// ModelName returns the model identifier
func (e *GeminiEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the client can serve requests. There is no
// cheap upstream health probe, so this checks local state only.
func (e *GeminiEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed && e.config.APIKey != ""
}

// Close releases resources
func (e *GeminiEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
