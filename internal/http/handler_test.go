package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/verdant/internal/cache/memory"
	"github.com/davidbz/verdant/internal/config"
	"github.com/davidbz/verdant/internal/domain"
	verdanthttp "github.com/davidbz/verdant/internal/http"
	"github.com/davidbz/verdant/internal/limiter"
	"github.com/davidbz/verdant/internal/routing"
)

// mockExecutor is a scripted orchestrator for handler tests.
type mockExecutor struct {
	result  *domain.Result
	err     error
	calls   int
	lastReq *domain.Request
}

func (m *mockExecutor) Execute(_ context.Context, req *domain.Request) (*domain.Result, error) {
	m.calls++
	m.lastReq = req
	return m.result, m.err
}

func newHandler(executor verdanthttp.Executor, limits config.LimitsConfig) *verdanthttp.Handler {
	return verdanthttp.NewHandler(
		executor,
		routing.NewRouter(),
		limiter.New(),
		memory.NewCache(),
		&limits,
		&config.CacheConfig{ChatTTL: 30 * time.Second},
	)
}

func defaultLimits() config.LimitsConfig {
	return config.LimitsConfig{
		ChatWindow:    time.Minute,
		ChatMax:       10,
		ImageCooldown: 15 * time.Second,
	}
}

func chatSuccess(text string) *domain.Result {
	return &domain.Result{
		Success:    true,
		Capability: domain.CapabilityChat,
		Provider:   "groq",
		Text:       text,
		FinishTime: time.Now(),
	}
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handlerFunc(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	t.Run("should return the completion text on success", func(t *testing.T) {
		executor := &mockExecutor{result: chatSuccess("We service your area every Thursday.")}
		handler := newHandler(executor, defaultLimits())

		rec := postJSON(t, handler.HandleChat, map[string]string{
			"session_id": "s-1",
			"message":    "Do you service Maplewood?",
		})

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "We service your area every Thursday.", resp["text"])
		require.Equal(t, "groq", resp["provider"])
		require.Equal(t, domain.CapabilityChat, executor.lastReq.Capability)
	})

	t.Run("should serve a repeated message from the session cache", func(t *testing.T) {
		executor := &mockExecutor{result: chatSuccess("Aerate in September.")}
		handler := newHandler(executor, defaultLimits())

		body := map[string]string{"session_id": "s-2", "message": "When should I aerate?"}

		first := postJSON(t, handler.HandleChat, body)
		require.Equal(t, http.StatusOK, first.Code)

		second := postJSON(t, handler.HandleChat, body)
		require.Equal(t, http.StatusOK, second.Code)
		require.Equal(t, 1, executor.calls)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
		require.Equal(t, true, resp["cached"])
		require.Equal(t, "Aerate in September.", resp["text"])
	})

	t.Run("should refuse the session once the rate limit is reached", func(t *testing.T) {
		executor := &mockExecutor{result: chatSuccess("ok")}
		limits := defaultLimits()
		limits.ChatMax = 1
		handler := newHandler(executor, limits)

		first := postJSON(t, handler.HandleChat, map[string]string{"session_id": "s-3", "message": "first"})
		require.Equal(t, http.StatusOK, first.Code)

		second := postJSON(t, handler.HandleChat, map[string]string{"session_id": "s-3", "message": "second"})
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		require.Equal(t, 1, executor.calls)
	})

	t.Run("should route an image message through the cooldown", func(t *testing.T) {
		executor := &mockExecutor{result: &domain.Result{
			Success:    true,
			Capability: domain.CapabilityImage,
			Provider:   "gemini",
			Payload:    []byte{1, 2, 3},
			MimeType:   "image/png",
			FinishTime: time.Now(),
		}}
		handler := newHandler(executor, defaultLimits())

		body := map[string]string{"session_id": "s-4", "message": "Draw a picture of a koi pond"}

		first := postJSON(t, handler.HandleChat, body)
		require.Equal(t, http.StatusOK, first.Code)
		require.Equal(t, domain.CapabilityImage, executor.lastReq.Capability)

		second := postJSON(t, handler.HandleChat, body)
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		require.Contains(t, second.Body.String(), "please wait")
		require.Equal(t, 1, executor.calls)
	})

	t.Run("should map chain exhaustion to 503 without provider detail", func(t *testing.T) {
		executor := &mockExecutor{result: &domain.Result{
			Success:    false,
			Capability: domain.CapabilityChat,
			ErrorKind:  domain.ErrorKindChainExhausted,
			Failures: []domain.ProviderFailure{
				{Provider: "groq", Status: domain.StatusTransient, Detail: "upstream exploded: secret-internal-hostname"},
			},
			FinishTime: time.Now(),
		}}
		handler := newHandler(executor, defaultLimits())

		rec := postJSON(t, handler.HandleChat, map[string]string{"session_id": "s-5", "message": "hello"})

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotContains(t, rec.Body.String(), "secret-internal-hostname")
		require.Contains(t, rec.Body.String(), "unavailable")
	})

	t.Run("should map a rate limited result to 429 with a Retry-After header", func(t *testing.T) {
		executor := &mockExecutor{result: &domain.Result{
			Success:    false,
			Capability: domain.CapabilityChat,
			ErrorKind:  domain.ErrorKindRateLimited,
			RetryAfter: 30 * time.Second,
			FinishTime: time.Now(),
		}}
		handler := newHandler(executor, defaultLimits())

		rec := postJSON(t, handler.HandleChat, map[string]string{"session_id": "s-6", "message": "hello"})

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "30", rec.Header().Get("Retry-After"))
	})

	t.Run("should reject a GET", func(t *testing.T) {
		handler := newHandler(&mockExecutor{}, defaultLimits())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.HandleChat(rec, req)

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleImage(t *testing.T) {
	imageSuccess := func(cached bool) *domain.Result {
		return &domain.Result{
			Success:    true,
			Capability: domain.CapabilityImage,
			Provider:   "gemini",
			Payload:    []byte{0x89, 0x50},
			MimeType:   "image/png",
			Cached:     cached,
			FinishTime: time.Now(),
		}
	}

	t.Run("should arm the cooldown after a generation", func(t *testing.T) {
		executor := &mockExecutor{result: imageSuccess(false)}
		handler := newHandler(executor, defaultLimits())

		body := map[string]string{"session_id": "s-7", "prompt": "a koi pond"}

		first := postJSON(t, handler.HandleImage, body)
		require.Equal(t, http.StatusOK, first.Code)

		second := postJSON(t, handler.HandleImage, body)
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		require.Contains(t, second.Body.String(), "please wait")
	})

	t.Run("should not arm the cooldown on a cache hit", func(t *testing.T) {
		executor := &mockExecutor{result: imageSuccess(true)}
		handler := newHandler(executor, defaultLimits())

		body := map[string]string{"session_id": "s-8", "prompt": "a koi pond"}

		first := postJSON(t, handler.HandleImage, body)
		require.Equal(t, http.StatusOK, first.Code)

		second := postJSON(t, handler.HandleImage, body)
		require.Equal(t, http.StatusOK, second.Code)
		require.Equal(t, 2, executor.calls)
	})
}

func TestHandleSpeech(t *testing.T) {
	t.Run("should return the audio payload", func(t *testing.T) {
		executor := &mockExecutor{result: &domain.Result{
			Success:    true,
			Capability: domain.CapabilitySpeech,
			Provider:   "elevenlabs",
			Payload:    []byte("mp3"),
			MimeType:   "audio/mpeg",
			FinishTime: time.Now(),
		}}
		handler := newHandler(executor, defaultLimits())

		rec := postJSON(t, handler.HandleSpeech, map[string]string{
			"session_id": "s-9",
			"text":       "Your estimate is ready.",
			"voice":      "rachel",
		})

		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "audio/mpeg", resp["mime_type"])
		require.Equal(t, "rachel", executor.lastReq.Speech.Voice)
	})
}

func TestHandleHealth(t *testing.T) {
	handler := newHandler(&mockExecutor{}, defaultLimits())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}
