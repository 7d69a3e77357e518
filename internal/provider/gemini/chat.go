// Package gemini provides chat and image adapters for Google's Generative
// Language API. Error bodies are parsed for Google's machine-readable
// retryDelay so the orchestrator can honor explicit quota signals.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const providerName = "gemini"

// ChatAdapter implements the domain.Adapter interface for Gemini chat.
type ChatAdapter struct {
	client *client
	model  string
}

// NewChatAdapter creates a new Gemini chat adapter.
func NewChatAdapter(config Config) (*ChatAdapter, error) {
	c, err := newClient(config)
	if err != nil {
		return nil, err
	}

	return &ChatAdapter{
		client: c,
		model:  config.ChatModel,
	}, nil
}

type generateContentRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Call issues a single generateContent attempt.
func (a *ChatAdapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Gemini generateContent")

	statusCode, body, err := a.client.post(ctx,
		fmt.Sprintf("/models/%s:generateContent", a.model),
		toGenerateContentRequest(req.Chat))
	if err != nil {
		return &domain.AttemptResult{
			Status:      domain.StatusTransient,
			ErrorDetail: err.Error(),
		}
	}

	status, retryAfter := ClassifyResponse(statusCode, body)
	if status != domain.StatusSuccess {
		logger.Warn("Gemini generateContent failed",
			observability.Int("status_code", statusCode),
			observability.String("status", string(status)))
		return &domain.AttemptResult{
			Status:      status,
			RetryAfter:  retryAfter,
			ErrorDetail: fmt.Sprintf("status %d: %s", statusCode, truncate(body)),
		}
	}

	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &domain.AttemptResult{
			Status:      domain.StatusFatal,
			ErrorDetail: fmt.Sprintf("failed to decode response: %v", err),
		}
	}

	text := ""
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}

	if text == "" {
		return &domain.AttemptResult{
			Status:      domain.StatusEmpty,
			ErrorDetail: "no candidate text in response",
		}
	}

	logger.Debug("Gemini generateContent succeeded",
		observability.Int("total_tokens", resp.UsageMetadata.TotalTokenCount))

	return &domain.AttemptResult{
		Status: domain.StatusSuccess,
		Text:   text,
		Usage: domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
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

// toGenerateContentRequest converts normalized messages to the Gemini
// contents shape. System messages become the systemInstruction; assistant
// turns map to the "model" role.
func toGenerateContentRequest(req *domain.ChatRequest) generateContentRequest {
	out := generateContentRequest{
		Contents: make([]content, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			out.SystemInstruction = &content{Parts: []part{{Text: msg.Content}}}
		case "assistant":
			out.Contents = append(out.Contents, content{Role: "model", Parts: []part{{Text: msg.Content}}})
		default:
			out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: msg.Content}}})
		}
	}

	return out
}

const maxErrorDetail = 200

func truncate(body []byte) string {
	if len(body) > maxErrorDetail {
		return string(body[:maxErrorDetail])
	}
	return string(body)
}
