package groq_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/provider/groq"
)

func apiError(status int, retryAfter string) *openai.Error {
	header := http.Header{}
	if retryAfter != "" {
		header.Set("Retry-After", retryAfter)
	}
	return &openai.Error{
		StatusCode: status,
		Response:   &http.Response{Header: header},
	}
}

func TestClassifyError(t *testing.T) {
	t.Run("should classify 429 as rate limited with the Retry-After value", func(t *testing.T) {
		status, retryAfter := groq.ClassifyError(apiError(http.StatusTooManyRequests, "30"))
		require.Equal(t, domain.StatusRateLimited, status)
		require.Equal(t, 30*time.Second, retryAfter)
	})

	t.Run("should classify 429 without a header as rate limited with no delay", func(t *testing.T) {
		status, retryAfter := groq.ClassifyError(apiError(http.StatusTooManyRequests, ""))
		require.Equal(t, domain.StatusRateLimited, status)
		require.Zero(t, retryAfter)
	})

	t.Run("should classify 5xx as transient", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			status, _ := groq.ClassifyError(apiError(code, ""))
			require.Equal(t, domain.StatusTransient, status, "status %d", code)
		}
	})

	t.Run("should classify auth failures as fatal", func(t *testing.T) {
		status, _ := groq.ClassifyError(apiError(http.StatusUnauthorized, ""))
		require.Equal(t, domain.StatusFatal, status)
	})

	t.Run("should classify deadline exceeded as transient", func(t *testing.T) {
		status, _ := groq.ClassifyError(context.DeadlineExceeded)
		require.Equal(t, domain.StatusTransient, status)
	})

	t.Run("should fall back to substring matching for plain errors", func(t *testing.T) {
		status, _ := groq.ClassifyError(errors.New("Rate limit reached for model"))
		require.Equal(t, domain.StatusRateLimited, status)

		status, _ = groq.ClassifyError(errors.New("dial tcp: connection refused"))
		require.Equal(t, domain.StatusTransient, status)

		status, _ = groq.ClassifyError(errors.New("invalid request"))
		require.Equal(t, domain.StatusFatal, status)
	})

	t.Run("should ignore malformed Retry-After values", func(t *testing.T) {
		_, retryAfter := groq.ClassifyError(apiError(http.StatusTooManyRequests, "soon"))
		require.Zero(t, retryAfter)
	})
}

func TestNewAdapter(t *testing.T) {
	t.Run("should require an API key", func(t *testing.T) {
		_, err := groq.NewAdapter(groq.Config{})
		require.Error(t, err)
	})

	t.Run("should report its identity", func(t *testing.T) {
		adapter, err := groq.NewAdapter(groq.Config{APIKey: "gsk-test", BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.3-70b-versatile"})
		require.NoError(t, err)
		require.Equal(t, "groq", adapter.Name())
		require.Equal(t, domain.CapabilityChat, adapter.Capability())
	})
}
