// Package echo provides a chat adapter that echoes back input messages.
// It implements the domain.Adapter interface without making external API
// calls, providing deterministic responses for testing and development.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const providerName = "echo"

// Config contains echo provider configuration. The adapter only registers
// when explicitly enabled so production chains never fall back to it by
// accident.
type Config struct {
	Enabled bool `env:"ECHO_ENABLED" envDefault:"false"`
}

// Adapter implements the domain.Adapter interface for echo testing.
type Adapter struct{}

// NewAdapter creates a new echo adapter.
// No configuration is required as this adapter operates entirely in-memory.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Call echoes the conversation back as the completion text.
func (a *Adapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)
	logger.Debug("echoing request")

	content := buildEchoContent(req.Chat.Messages)
	if content == "" {
		return &domain.AttemptResult{
			Status:      domain.StatusEmpty,
			ErrorDetail: "no messages to echo",
		}
	}

	tokens := countTokens(content)

	logger.Debug("echo completed",
		observability.Int("prompt_tokens", tokens),
		observability.Int("completion_tokens", tokens),
	)

	return &domain.AttemptResult{
		Status: domain.StatusSuccess,
		Text:   content,
		Usage: domain.Usage{
			PromptTokens:     tokens,
			CompletionTokens: tokens,
			TotalTokens:      tokens * 2,
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

// buildEchoContent constructs the echo response from request messages.
func buildEchoContent(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, msg := range messages {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}
	return builder.String()
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
