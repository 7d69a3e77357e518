// Package routing detects which capability a free-form customer message is
// asking for and normalizes it into an orchestrator request.
package routing

import (
	"errors"
	"strings"

	"github.com/davidbz/verdant/internal/domain"
)

// imageVerbs and imageNouns must co-occur for a message to route to image
// generation. A lone "draw" or a lone "picture" stays a chat message, so
// questions like "can you picture the yard?" do not burn image quota.
var imageVerbs = []string{
	"draw", "generate", "create", "make", "render", "show me", "design", "visualize", "sketch",
}

var imageNouns = []string{
	"image", "picture", "photo", "illustration", "rendering", "mockup", "mock-up", "visual", "sketch of",
}

var speechCues = []string{
	"read aloud", "read this aloud", "read it aloud", "say this", "say it out loud",
	"speak this", "voice message", "text to speech", "audio version", "as audio",
}

// SimpleRouter implements keyword-based capability detection.
type SimpleRouter struct{}

// NewRouter creates a new router.
func NewRouter() *SimpleRouter {
	return &SimpleRouter{}
}

// Route classifies the message and returns a normalized request for the
// detected capability. The original message always travels with the
// request: image routing uses it as the prompt, speech routing as the text
// to synthesize.
func (r *SimpleRouter) Route(sessionID, message string) (*domain.Request, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil, errors.New("message is required")
	}

	lower := strings.ToLower(trimmed)

	if matchesAny(lower, speechCues) {
		return &domain.Request{
			Capability: domain.CapabilitySpeech,
			SessionID:  sessionID,
			Speech:     &domain.SpeechRequest{Text: trimmed},
		}, nil
	}

	if matchesAny(lower, imageVerbs) && matchesAny(lower, imageNouns) {
		return &domain.Request{
			Capability: domain.CapabilityImage,
			SessionID:  sessionID,
			Image:      &domain.ImageRequest{Prompt: trimmed},
		}, nil
	}

	return &domain.Request{
		Capability: domain.CapabilityChat,
		SessionID:  sessionID,
		Chat: &domain.ChatRequest{
			Messages: []domain.Message{{Role: "user", Content: trimmed}},
		},
	}, nil
}

func matchesAny(message string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}
