package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
	}{
		{"config code", ErrCodeConfigInvalid, CategoryConfig},
		{"storage code", ErrCodeDocNotFound, CategoryStorage},
		{"embedding code", ErrCodeEmbedRateLimited, CategoryEmbedding},
		{"validation code", ErrCodeDimensionMismatch, CategoryValidation},
		{"internal code", ErrCodeInternal, CategoryInternal},
		{"malformed code", "bogus", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_DerivesRetryability(t *testing.T) {
	assert.True(t, New(ErrCodeEmbedRateLimited, "429", nil).Retryable)
	assert.True(t, New(ErrCodeEmbedTransport, "conn reset", nil).Retryable)
	assert.False(t, New(ErrCodeEmbedRejected, "bad request", nil).Retryable)
	assert.False(t, New(ErrCodeEmbedExhausted, "gave up", nil).Retryable)
}

func TestError_FormatsCodeAndMessage(t *testing.T) {
	err := New(ErrCodeDocNotFound, "document not found: 42", nil)
	assert.Equal(t, "[ERR_206_DOCUMENT_NOT_FOUND] document not found: 42", err.Error())
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(ErrCodeStoreUnavailable, fmt.Errorf("open db: %w", cause))

	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeDocNotFound, "one", nil)
	b := New(ErrCodeDocNotFound, "another", nil)
	c := New(ErrCodeInternal, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_Chains(t *testing.T) {
	err := New(ErrCodeEmbedRejected, "rejected", nil).
		WithDetail("status", "INVALID_ARGUMENT").
		WithDetail("model", "gemini-embedding-001")

	assert.Equal(t, "INVALID_ARGUMENT", err.Details["status"])
	assert.Equal(t, "gemini-embedding-001", err.Details["model"])
}

func TestNotFound_CarriesSuggestion(t *testing.T) {
	err := NotFound("doc 7")

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Suggestion, "palank-rag list")
	assert.Contains(t, err.Message, "doc 7")
}

func TestIsRetryable_PlainErrorIsNot(t *testing.T) {
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(New(ErrCodeEmbedTransport, "timeout", nil)))
}

func TestIsFatal_CorruptIndex(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "bad snapshot", nil)))
	assert.False(t, IsFatal(New(ErrCodeDocNotFound, "missing", nil)))
	assert.False(t, IsFatal(nil))
}

func TestGetCode_NonRagError(t *testing.T) {
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeInternal, GetCode(New(ErrCodeInternal, "x", nil)))
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	inner := New(ErrCodeEmbedRateLimited, "quota", nil)
	wrapped := fmt.Errorf("failed to embed text 3/7: %w", inner)

	assert.Equal(t, ErrCodeEmbedRateLimited, GetCode(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, CategoryEmbedding, GetCategory(wrapped))
}
