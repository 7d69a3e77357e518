// Package googletts provides a speech synthesis adapter for the Google
// Cloud Text-to-Speech REST API.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
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

const providerName = "googletts"

// Adapter implements the domain.Adapter interface for Google Cloud speech
// synthesis.
type Adapter struct {
	apiKey       string
	baseURL      string
	languageCode string
	voiceName    string
	httpClient   *http.Client
}

// NewAdapter creates a new Google TTS adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, errors.New("google TTS API key is required")
	}

	return &Adapter{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		languageCode: config.LanguageCode,
		voiceName:    config.VoiceName,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Call issues a single speech synthesis attempt.
func (a *Adapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)

	var payload synthesizeRequest
	payload.Input.Text = req.Speech.Text
	payload.Voice.LanguageCode = a.languageCode
	payload.Voice.Name = a.voiceName
	payload.AudioConfig.AudioEncoding = "MP3"

	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/text:synthesize?key="+a.apiKey, bytes.NewReader(body))
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		logger.Warn("google TTS synthesis failed",
			observability.Int("status_code", resp.StatusCode),
			observability.String("status", string(status)))
		return &domain.AttemptResult{
			Status:      status,
			ErrorDetail: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	var parsed synthesizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil || len(audio) == 0 {
		return &domain.AttemptResult{Status: domain.StatusEmpty, ErrorDetail: "response carried no audio"}
	}

	logger.Debug("google TTS synthesis succeeded",
		observability.Int("bytes", len(audio)))

	return &domain.AttemptResult{
		Status:   domain.StatusSuccess,
		Payload:  audio,
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

func classifyErrorBody(statusCode int, body []byte) domain.AttemptStatus {
	lower := strings.ToLower(string(body))
	switch {
	case statusCode == http.StatusTooManyRequests,
		strings.Contains(lower, "resource_exhausted"),
		strings.Contains(lower, "quota"):
		return domain.StatusRateLimited
	case statusCode >= http.StatusInternalServerError:
		return domain.StatusTransient
	}
	return domain.StatusFatal
}
