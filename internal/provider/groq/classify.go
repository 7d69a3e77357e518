package groq

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/davidbz/verdant/internal/domain"
)

// ClassifyError maps a Groq API error to an attempt status.
//
// Recognized signals:
//   - HTTP 429, or "rate_limit"/"rate limit"/"quota" substrings: RateLimited,
//     carrying the Retry-After header value when the response provides one
//     in seconds.
//   - HTTP 5xx, context deadline, or "timeout"/"connection refused"
//     substrings: Transient.
//   - Everything else (auth failures, malformed requests): Fatal.
func ClassifyError(err error) (domain.AttemptStatus, time.Duration) {
	if err == nil {
		return domain.StatusFatal, 0
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return domain.StatusRateLimited, retryAfterOf(apiErr)
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return domain.StatusTransient, 0
		}
		return domain.StatusFatal, 0
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.StatusTransient, 0
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"):
		return domain.StatusRateLimited, 0
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"):
		return domain.StatusTransient, 0
	}

	return domain.StatusFatal, 0
}

// retryAfterOf extracts a whole-seconds Retry-After header, if present.
func retryAfterOf(apiErr *openai.Error) time.Duration {
	if apiErr.Response == nil {
		return 0
	}

	header := apiErr.Response.Header.Get("Retry-After")
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
