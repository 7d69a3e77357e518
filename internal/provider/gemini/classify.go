package gemini

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davidbz/verdant/internal/domain"
)

// Google embeds a machine-readable retry delay in 429 bodies, either as a
// RetryInfo JSON field (`"retryDelay": "38s"`) or as plain text
// (`retryDelay: 38s`). An explicit delay is the signal that aborts the
// whole fallback chain upstream.
var retryDelayPattern = regexp.MustCompile(`retryDelay"?\s*:\s*"?(\d+)s`)

// ClassifyResponse maps a Generative Language API response to an attempt
// status.
//
// Recognized signals:
//   - HTTP 429, or "quota"/"RESOURCE_EXHAUSTED"/"rate limit" substrings:
//     RateLimited, carrying the parsed retryDelay when the body has one.
//   - HTTP 5xx: Transient.
//   - HTTP 2xx: Success (payload emptiness is judged by the caller).
//   - Everything else: Fatal.
func ClassifyResponse(statusCode int, body []byte) (domain.AttemptStatus, time.Duration) {
	text := string(body)

	if statusCode == http.StatusTooManyRequests || looksRateLimited(text) {
		return domain.StatusRateLimited, parseRetryDelay(text)
	}

	switch {
	case statusCode >= http.StatusInternalServerError:
		return domain.StatusTransient, 0
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return domain.StatusSuccess, 0
	}

	return domain.StatusFatal, 0
}

func looksRateLimited(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "quota") ||
		strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "rate limit")
}

// parseRetryDelay extracts Google's requested wait from an error body,
// returning 0 when absent.
func parseRetryDelay(text string) time.Duration {
	match := retryDelayPattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}

	seconds, err := strconv.Atoi(match[1])
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
