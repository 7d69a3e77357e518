package domain

import "time"

// Capability identifies a class of request the orchestrator can fulfill.
type Capability string

const (
	CapabilityChat   Capability = "chat"
	CapabilityImage  Capability = "image"
	CapabilitySpeech Capability = "speech"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// ChatRequest is the normalized payload for chat completion.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ImageRequest is the normalized payload for image generation.
type ImageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// SpeechRequest is the normalized payload for text-to-speech.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Request bundles one normalized payload with its capability tag.
// Exactly one of Chat, Image, Speech is set, matching Capability.
type Request struct {
	Capability Capability     `json:"capability"`
	SessionID  string         `json:"session_id,omitempty"`
	Chat       *ChatRequest   `json:"chat,omitempty"`
	Image      *ImageRequest  `json:"image,omitempty"`
	Speech     *SpeechRequest `json:"speech,omitempty"`
}

// AttemptStatus classifies the outcome of a single provider call.
type AttemptStatus string

const (
	StatusSuccess     AttemptStatus = "success"
	StatusRateLimited AttemptStatus = "rate_limited"
	StatusTransient   AttemptStatus = "transient"
	StatusFatal       AttemptStatus = "fatal"
	StatusEmpty       AttemptStatus = "empty"
)

// AttemptResult is the outcome of one call to one provider. It is folded
// into the orchestrator's decision and never persisted.
type AttemptResult struct {
	Status      AttemptStatus
	Text        string        // textual artifact (chat content)
	Payload     []byte        // binary artifact (image, audio)
	MimeType    string        // mime type of Payload when set
	Usage       Usage         // token usage for chat providers
	RetryAfter  time.Duration // explicit provider-requested delay, when known
	ErrorDetail string        // provider error text, kept internal
}

// Usage tracks token consumption for chat completions.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorKind classifies a terminal orchestration failure.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindRateLimited    ErrorKind = "rate_limited"
	ErrorKindTransient      ErrorKind = "transient"
	ErrorKindFatal          ErrorKind = "fatal"
	ErrorKindEmpty          ErrorKind = "empty"
	ErrorKindChainExhausted ErrorKind = "chain_exhausted"
)

// ProviderFailure records why one provider was abandoned, for the aggregate
// chain-exhausted report.
type ProviderFailure struct {
	Provider string        `json:"provider"`
	Status   AttemptStatus `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Attempts int           `json:"attempts"`
}

// Result is the unified orchestrator output regardless of which provider
// (if any) satisfied the request.
type Result struct {
	Success    bool              `json:"success"`
	Capability Capability        `json:"capability"`
	Provider   string            `json:"provider,omitempty"`
	Text       string            `json:"text,omitempty"`
	Payload    []byte            `json:"payload,omitempty"`
	MimeType   string            `json:"mime_type,omitempty"`
	Usage      Usage             `json:"usage"`
	Cached     bool              `json:"cached,omitempty"`
	ErrorKind  ErrorKind         `json:"error_kind,omitempty"`
	RetryAfter time.Duration     `json:"retry_after,omitempty"`
	Failures   []ProviderFailure `json:"failures,omitempty"`
	FinishTime time.Time         `json:"finish_time"`
}

// ProviderSpec identifies one backend in a capability's priority table.
// Chain membership is computed at request time by credential availability.
type ProviderSpec struct {
	Capability         Capability
	Name               string
	Priority           int
	RequiresCredential bool
}
