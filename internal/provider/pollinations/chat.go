// Package pollinations provides keyless chat and image adapters for the
// Pollinations free API, used as the universal fallback once every
// credentialed provider in a chain is exhausted. Requests use a simplified
// shape: role and content only, no tools.
package pollinations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const providerName = "pollinations"

// ChatAdapter implements the domain.Adapter interface for Pollinations
// text generation through its OpenAI-compatible endpoint.
type ChatAdapter struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewChatAdapter creates a new Pollinations chat adapter.
func NewChatAdapter(config Config) *ChatAdapter {
	return &ChatAdapter{
		apiKey:  config.APIKey,
		baseURL: config.TextBaseURL,
		model:   config.TextModel,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
}

type chatCompletionRequest struct {
	Model     string           `json:"model"`
	Messages  []domain.Message `json:"messages"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call issues a single text generation attempt.
func (a *ChatAdapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Pollinations text API")

	// Simplified request shape: role/content only.
	clean := make([]domain.Message, 0, len(req.Chat.Messages))
	for _, msg := range req.Chat.Messages {
		clean = append(clean, domain.Message{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:     a.model,
		Messages:  clean,
		MaxTokens: req.Chat.MaxTokens,
	})
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/openai", bytes.NewReader(body))
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}

	if status := classifyStatusCode(resp.StatusCode); status != domain.StatusSuccess {
		return &domain.AttemptResult{
			Status:      status,
			ErrorDetail: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	var parsed chatCompletionResponse
	text := ""
	if json.Unmarshal(respBody, &parsed) == nil && len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}
	if text == "" {
		// Some models answer with plain text rather than the OpenAI shape.
		text = string(respBody)
	}

	if text == "" {
		return &domain.AttemptResult{Status: domain.StatusEmpty, ErrorDetail: "empty completion"}
	}

	logger.Debug("Pollinations text API succeeded")

	return &domain.AttemptResult{
		Status: domain.StatusSuccess,
		Text:   text,
	}
}

// Name returns the provider identifier.
func (a *ChatAdapter) Name() string {
	return providerName
}

// Capability returns the class of request this adapter serves.
func (a *ChatAdapter) Capability() domain.Capability {
	return domain.CapabilityChat
}

// classifyStatusCode maps a Pollinations HTTP status to an attempt status.
// Recognized signals: 429 RateLimited, 5xx Transient, 2xx Success, other
// codes Fatal.
func classifyStatusCode(statusCode int) domain.AttemptStatus {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return domain.StatusRateLimited
	case statusCode >= http.StatusInternalServerError:
		return domain.StatusTransient
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return domain.StatusSuccess
	}
	return domain.StatusFatal
}
