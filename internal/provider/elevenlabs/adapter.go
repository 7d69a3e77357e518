// Package elevenlabs provides a speech synthesis adapter for the
// ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const providerName = "elevenlabs"

// voiceIDs maps the friendly voice names callers use to ElevenLabs
// premade voice identifiers.
var voiceIDs = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM",
	"josh":   "TxGEqnHWrfWFTfGW9XjX",
	"bella":  "EXAVITQu4vr4xnSDxMaL",
	"adam":   "pNInz6obpgDQGcFmaJgB",
}

// Adapter implements the domain.Adapter interface for ElevenLabs speech
// synthesis.
type Adapter struct {
	apiKey       string
	baseURL      string
	model        string
	defaultVoice string
	httpClient   *http.Client
}

// NewAdapter creates a new ElevenLabs adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, errors.New("elevenlabs API key is required")
	}

	return &Adapter{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		model:        config.Model,
		defaultVoice: config.DefaultVoice,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Call issues a single speech synthesis attempt.
func (a *Adapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)

	voiceID, err := a.resolveVoice(req.Speech.Voice)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    req.Speech.Text,
		ModelID: a.model,
	})
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/text-to-speech/"+voiceID, bytes.NewReader(body))
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		status := classifyErrorBody(resp.StatusCode, respBody)
		logger.Warn("elevenlabs synthesis failed",
			observability.Int("status_code", resp.StatusCode),
			observability.String("status", string(status)))
		return &domain.AttemptResult{
			Status:      status,
			ErrorDetail: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	if len(respBody) == 0 {
		return &domain.AttemptResult{Status: domain.StatusEmpty, ErrorDetail: "empty audio body"}
	}

	logger.Debug("elevenlabs synthesis succeeded",
		observability.Int("bytes", len(respBody)))

	return &domain.AttemptResult{
		Status:   domain.StatusSuccess,
		Payload:  respBody,
		MimeType: "audio/mpeg",
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return providerName
}

// Capability returns the class of request this adapter serves.
func (a *Adapter) Capability() domain.Capability {
	return domain.CapabilitySpeech
}

func (a *Adapter) resolveVoice(voice string) (string, error) {
	if voice == "" {
		voice = a.defaultVoice
	}

	id, ok := voiceIDs[strings.ToLower(voice)]
	if !ok {
		return "", fmt.Errorf("unknown voice %q", voice)
	}
	return id, nil
}

// classifyErrorBody maps an ElevenLabs error to an attempt status. The API
// reports exhausted character quota with a 401 carrying quota_exceeded, not
// a 429, so the body is checked alongside the status code.
func classifyErrorBody(statusCode int, body []byte) domain.AttemptStatus {
	lower := strings.ToLower(string(body))
	switch {
	case statusCode == http.StatusTooManyRequests,
		strings.Contains(lower, "quota_exceeded"),
		strings.Contains(lower, "too_many_concurrent_requests"):
		return domain.StatusRateLimited
	case statusCode >= http.StatusInternalServerError:
		return domain.StatusTransient
	}
	return domain.StatusFatal
}
