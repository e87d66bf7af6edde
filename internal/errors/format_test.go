package errors

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeAPIKeyMissing, "no API key configured", nil).
		WithSuggestion("set GEMINI_API_KEY in your environment")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: no API key configured")
	assert.Contains(t, out, "Hint: set GEMINI_API_KEY")
	assert.Contains(t, out, "Code: ERR_102_API_KEY_MISSING")
}

func TestFormatForCLI_WrapsPlainError(t *testing.T) {
	out := FormatForCLI(stderrors.New("something broke"))

	assert.Contains(t, out, "something broke")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatForCLI_NilIsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatJSON_RoundTrips(t *testing.T) {
	err := New(ErrCodeEmbedExhausted, "gave up after 4 attempts", stderrors.New("429")).
		WithDetail("attempts", "4")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, ErrCodeEmbedExhausted, decoded["code"])
	assert.Equal(t, string(CategoryEmbedding), decoded["category"])
	assert.Equal(t, "429", decoded["cause"])
	assert.Equal(t, false, decoded["retryable"])
}

func TestFormatForLog_FlattensDetails(t *testing.T) {
	err := New(ErrCodeScrapeFailed, "fetch failed", nil).
		WithDetail("url", "https://example.com")

	attrs := FormatForLog(err)

	assert.Equal(t, ErrCodeScrapeFailed, attrs["error_code"])
	assert.Equal(t, "https://example.com", attrs["detail_url"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(stderrors.New("plain"))
	assert.Equal(t, "plain", attrs["error"])
}
