// Package groq provides the chat adapter for Groq's hosted models using the
// OpenAI SDK against Groq's OpenAI-compatible endpoint. It performs exactly
// one round trip per Call; retries belong to the orchestrator, so SDK-level
// retries are disabled.
package groq

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const providerName = "groq"

// Adapter implements the domain.Adapter interface for Groq chat.
type Adapter struct {
	client openai.Client
	model  string
}

// NewAdapter creates a new Groq adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, errors.New("Groq API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(0),
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Adapter{
		client: openai.NewClient(opts...),
		model:  config.Model,
	}, nil
}

// Call issues a single chat completion attempt.
func (a *Adapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Groq API")

	resp, err := a.client.Chat.Completions.New(ctx, a.toSDKParams(req.Chat))
	if err != nil {
		status, retryAfter := ClassifyError(err)
		logger.Warn("Groq API call failed",
			observability.String("status", string(status)),
			observability.Error(err))
		return &domain.AttemptResult{
			Status:      status,
			RetryAfter:  retryAfter,
			ErrorDetail: err.Error(),
		}
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	if content == "" {
		return &domain.AttemptResult{
			Status:      domain.StatusEmpty,
			ErrorDetail: "empty completion content",
		}
	}

	logger.Debug("Groq API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return &domain.AttemptResult{
		Status: domain.StatusSuccess,
		Text:   content,
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return providerName
}

// Capability returns the class of request this adapter serves.
func (a *Adapter) Capability() domain.Capability {
	return domain.CapabilityChat
}

// toSDKParams converts the normalized chat request to SDK parameters.
func (a *Adapter) toSDKParams(req *domain.ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages[i] = openai.AssistantMessage(msg.Content)
		case "system":
			messages[i] = openai.SystemMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: messages,
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	return params
}
