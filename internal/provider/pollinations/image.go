package pollinations

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const (
	imageWidth  = 1024
	imageHeight = 1024
	maxSeed     = 1000000
)

// ImageAdapter implements the domain.Adapter interface for Pollinations
// image generation: a single GET with the URL-encoded prompt.
type ImageAdapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewImageAdapter creates a new Pollinations image adapter.
func NewImageAdapter(config Config) *ImageAdapter {
	return &ImageAdapter{
		baseURL: config.ImageBaseURL,
		model:   config.ImageModel,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
}

// Call issues a single image generation attempt. A 200 with a non-image
// content type is how the service reports an unusable generation, so it
// classifies as Empty rather than Success.
func (a *ImageAdapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Pollinations image API")

	imageURL := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&seed=%d&nologo=true&model=%s",
		a.baseURL,
		url.PathEscape(req.Image.Prompt),
		imageWidth,
		imageHeight,
		rand.Intn(maxSeed),
		a.model,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	if status := classifyStatusCode(resp.StatusCode); status != domain.StatusSuccess {
		return &domain.AttemptResult{
			Status:      status,
			ErrorDetail: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "image") {
		return &domain.AttemptResult{
			Status:      domain.StatusEmpty,
			ErrorDetail: fmt.Sprintf("non-image response: %s", contentType),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return &domain.AttemptResult{Status: domain.StatusEmpty, ErrorDetail: "empty image body"}
	}

	logger.Debug("Pollinations image API succeeded",
		observability.Int("bytes", len(data)))

	return &domain.AttemptResult{
		Status:   domain.StatusSuccess,
		Payload:  data,
		MimeType: contentType,
	}
}

// Name returns the provider identifier.
func (a *ImageAdapter) Name() string {
	return providerName
}

// Capability returns the class of request this adapter serves.
func (a *ImageAdapter) Capability() domain.Capability {
	return domain.CapabilityImage
}
