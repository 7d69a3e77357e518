package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

// ImageAdapter implements the domain.Adapter interface for Imagen
// generation through the Generative Language API predict endpoint.
type ImageAdapter struct {
	client *client
	model  string
}

// NewImageAdapter creates a new Gemini image adapter.
func NewImageAdapter(config Config) (*ImageAdapter, error) {
	c, err := newClient(config)
	if err != nil {
		return nil, err
	}

	return &ImageAdapter{
		client: c,
		model:  config.ImageModel,
	}, nil
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// Call issues a single image generation attempt.
func (a *ImageAdapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Imagen predict")

	statusCode, body, err := a.client.post(ctx,
		fmt.Sprintf("/models/%s:predict", a.model),
		predictRequest{
			Instances: []predictInstance{{Prompt: req.Image.Prompt}},
			Parameters: predictParameters{
				SampleCount: 1,
				AspectRatio: req.Image.AspectRatio,
			},
		})
	if err != nil {
		return &domain.AttemptResult{
			Status:      domain.StatusTransient,
			ErrorDetail: err.Error(),
		}
	}

	status, retryAfter := ClassifyResponse(statusCode, body)
	if status != domain.StatusSuccess {
		logger.Warn("Imagen predict failed",
			observability.Int("status_code", statusCode),
			observability.String("status", string(status)))
		return &domain.AttemptResult{
			Status:      status,
			RetryAfter:  retryAfter,
			ErrorDetail: fmt.Sprintf("status %d: %s", statusCode, truncate(body)),
		}
	}

	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &domain.AttemptResult{
			Status:      domain.StatusFatal,
			ErrorDetail: fmt.Sprintf("failed to decode response: %v", err),
		}
	}

	// A 2xx with no predictions is how the API reports safety filtering.
	if len(resp.Predictions) == 0 {
		return &domain.AttemptResult{
			Status:      domain.StatusEmpty,
			ErrorDetail: "no predictions in response",
		}
	}

	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil || len(data) == 0 {
		return &domain.AttemptResult{
			Status:      domain.StatusEmpty,
			ErrorDetail: "prediction carried no image bytes",
		}
	}

	mime := resp.Predictions[0].MimeType
	if mime == "" {
		mime = "image/png"
	}

	logger.Debug("Imagen predict succeeded",
		observability.Int("bytes", len(data)))

	return &domain.AttemptResult{
		Status:   domain.StatusSuccess,
		Payload:  data,
		MimeType: mime,
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
