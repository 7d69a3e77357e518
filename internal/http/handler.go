// Package http exposes the chatbot over REST. It owns the per-session rate
// limits, the short-lived response cache, and the translation of
// orchestrator outcomes into status codes. Provider error text never leaves
// this layer.
package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davidbz/verdant/internal/config"
	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/limiter"
	"github.com/davidbz/verdant/internal/observability"
	"github.com/davidbz/verdant/internal/routing"
)

// Executor drives a normalized request through the fallback chains.
type Executor interface {
	Execute(ctx context.Context, req *domain.Request) (*domain.Result, error)
}

// Handler handles HTTP requests.
type Handler struct {
	orchestrator Executor
	router       *routing.SimpleRouter
	limiter      *limiter.Limiter
	sessions     domain.ResponseCache
	limits       config.LimitsConfig
	chatTTL      time.Duration
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	orchestrator Executor,
	router *routing.SimpleRouter,
	rateLimiter *limiter.Limiter,
	sessions domain.ResponseCache,
	limits *config.LimitsConfig,
	cacheCfg *config.CacheConfig,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		router:       router,
		limiter:      rateLimiter,
		sessions:     sessions,
		limits:       *limits,
		chatTTL:      cacheCfg.ChatTTL,
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type imageRequest struct {
	SessionID   string `json:"session_id"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

type speechRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Voice     string `json:"voice"`
}

type completionResponse struct {
	Capability string       `json:"capability"`
	Provider   string       `json:"provider,omitempty"`
	Text       string       `json:"text,omitempty"`
	Payload    []byte       `json:"payload,omitempty"`
	MimeType   string       `json:"mime_type,omitempty"`
	Usage      domain.Usage `json:"usage"`
	Cached     bool         `json:"cached"`
}

type errorResponse struct {
	Error             string `json:"error"`
	ErrorKind         string `json:"error_kind,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// HandleChat processes conversational requests. The message is routed to a
// capability first, so a chat message asking for a picture flows through
// the image chain with its cooldown intact.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "anonymous"
	}
	ctx = observability.WithSessionID(ctx, sessionID)
	logger := observability.FromContext(ctx)

	if !h.limiter.Allow(sessionID, h.limits.ChatWindow, h.limits.ChatMax) {
		logger.Warn("session rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, errorResponse{
			Error: "too many requests, slow down a little",
		})
		return
	}

	normalized, err := h.router.Route(sessionID, req.Message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.Info("chat request routed",
		zap.String("capability", string(normalized.Capability)))

	if normalized.Capability == domain.CapabilityChat {
		if cached := h.lookupSession(ctx, sessionID, req.Message); cached != nil {
			logger.Info("session cache hit")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if normalized.Capability == domain.CapabilityImage && h.refuseCooldown(w, logger, sessionID) {
		return
	}

	result, err := h.orchestrator.Execute(ctx, normalized)
	if err != nil {
		logger.Error("orchestration failed", zap.Error(err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if normalized.Capability == domain.CapabilityImage && !result.Cached {
		h.limiter.Touch(sessionID)
	}

	if result.Success && normalized.Capability == domain.CapabilityChat {
		h.storeSession(ctx, sessionID, req.Message, result)
	}

	h.writeResult(w, logger, result)
}

// HandleImage processes direct image generation requests.
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "anonymous"
	}
	ctx = observability.WithSessionID(ctx, sessionID)
	logger := observability.FromContext(ctx)

	if h.refuseCooldown(w, logger, sessionID) {
		return
	}

	result, err := h.orchestrator.Execute(ctx, &domain.Request{
		Capability: domain.CapabilityImage,
		SessionID:  sessionID,
		Image: &domain.ImageRequest{
			Prompt:      req.Prompt,
			AspectRatio: req.AspectRatio,
		},
	})
	if err != nil {
		logger.Error("orchestration failed", zap.Error(err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	// A cache hit never reached a backend, so it does not arm the cooldown.
	if !result.Cached {
		h.limiter.Touch(sessionID)
	}

	h.writeResult(w, logger, result)
}

// HandleSpeech processes text-to-speech requests.
func (h *Handler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "anonymous"
	}
	ctx = observability.WithSessionID(ctx, sessionID)
	logger := observability.FromContext(ctx)

	result, err := h.orchestrator.Execute(ctx, &domain.Request{
		Capability: domain.CapabilitySpeech,
		SessionID:  sessionID,
		Speech: &domain.SpeechRequest{
			Text:  req.Text,
			Voice: req.Voice,
		},
	})
	if err != nil {
		logger.Error("orchestration failed", zap.Error(err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	h.writeResult(w, logger, result)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

// refuseCooldown rejects the request when the session's image cooldown has
// not elapsed. Returns true when a response has been written.
func (h *Handler) refuseCooldown(w http.ResponseWriter, logger *zap.Logger, sessionID string) bool {
	remaining := h.limiter.CooldownRemaining(sessionID, h.limits.ImageCooldown)
	if remaining <= 0 {
		return false
	}

	seconds := int(remaining.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}

	logger.Warn("image cooldown active", zap.Int("remaining_seconds", seconds))
	writeError(w, http.StatusTooManyRequests, errorResponse{
		Error:             fmt.Sprintf("please wait %d seconds before requesting another image", seconds),
		RetryAfterSeconds: seconds,
	})
	return true
}

// writeResult maps an orchestrator outcome to a response. Failure bodies
// carry a generic message only; per-provider detail stays in the logs.
func (h *Handler) writeResult(w http.ResponseWriter, logger *zap.Logger, result *domain.Result) {
	if result.Success {
		writeJSON(w, http.StatusOK, &completionResponse{
			Capability: string(result.Capability),
			Provider:   result.Provider,
			Text:       result.Text,
			Payload:    result.Payload,
			MimeType:   result.MimeType,
			Usage:      result.Usage,
			Cached:     result.Cached,
		})
		return
	}

	logger.Warn("request failed",
		zap.String("error_kind", string(result.ErrorKind)),
		zap.Int("failures", len(result.Failures)))

	switch result.ErrorKind {
	case domain.ErrorKindRateLimited:
		seconds := int(result.RetryAfter.Round(time.Second).Seconds())
		if seconds > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		}
		writeError(w, http.StatusTooManyRequests, errorResponse{
			Error:             "the service is busy right now, please try again shortly",
			ErrorKind:         string(result.ErrorKind),
			RetryAfterSeconds: seconds,
		})
	case domain.ErrorKindChainExhausted, domain.ErrorKindTransient:
		writeError(w, http.StatusServiceUnavailable, errorResponse{
			Error:     "all providers are currently unavailable, please try again later",
			ErrorKind: string(result.ErrorKind),
		})
	default:
		writeError(w, http.StatusBadGateway, errorResponse{
			Error:     "the request could not be completed",
			ErrorKind: string(result.ErrorKind),
		})
	}
}

func (h *Handler) lookupSession(ctx context.Context, sessionID, message string) *completionResponse {
	if h.sessions == nil {
		return nil
	}

	data, err := h.sessions.Get(ctx, sessionKey(sessionID, message))
	if err != nil {
		return nil
	}

	var resp completionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}
	resp.Cached = true
	return &resp
}

func (h *Handler) storeSession(ctx context.Context, sessionID, message string, result *domain.Result) {
	if h.sessions == nil {
		return
	}

	data, err := json.Marshal(&completionResponse{
		Capability: string(result.Capability),
		Provider:   result.Provider,
		Text:       result.Text,
		Usage:      result.Usage,
	})
	if err != nil {
		return
	}

	// Best effort, a failed write just means a fresh completion next time.
	_ = h.sessions.Set(ctx, sessionKey(sessionID, message), data, h.chatTTL)
}

// sessionKey derives the response cache key for a repeated message within
// one session.
func sessionKey(sessionID, message string) string {
	sum := sha256.Sum256([]byte(sessionID + "|" + message))
	return "chat:" + hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}
