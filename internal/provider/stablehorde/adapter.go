// Package stablehorde provides an image adapter for the crowdsourced
// AI Horde cluster. Generation is asynchronous: a job is submitted, polled
// until a worker finishes it, and the finished image is downloaded from
// the URL the status endpoint reports.
package stablehorde

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const providerName = "stablehorde"

// Adapter implements the domain.Adapter interface for AI Horde image
// generation.
type Adapter struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
}

// NewAdapter creates a new AI Horde adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, errors.New("horde API key is required")
	}

	return &Adapter{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		model:        config.Model,
		pollInterval: config.PollInterval,
		maxWait:      config.MaxWait,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

type generateRequest struct {
	Prompt string         `json:"prompt"`
	Params generateParams `json:"params"`
	Models []string       `json:"models,omitempty"`
	NSFW   bool           `json:"nsfw"`
}

type generateParams struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Steps  int `json:"steps"`
	N      int `json:"n"`
}

type generateResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type checkResponse struct {
	Done     bool `json:"done"`
	Faulted  bool `json:"faulted"`
	Finished int  `json:"finished"`
	Waiting  int  `json:"waiting"`
}

type statusResponse struct {
	Generations []struct {
		Img string `json:"img"`
	} `json:"generations"`
}

// Call submits a generation job and polls until it finishes or the wait
// budget runs out. A job still processing at the deadline classifies as
// Transient so the caller can fall through to the next provider without
// treating the cluster as broken.
func (a *Adapter) Call(ctx context.Context, req *domain.Request) *domain.AttemptResult {
	logger := observability.FromContext(ctx)

	jobID, res := a.submit(ctx, req.Image.Prompt)
	if res != nil {
		return res
	}

	logger.Debug("horde job submitted", observability.String("job_id", jobID))

	imgURL, res := a.waitForJob(ctx, jobID)
	if res != nil {
		return res
	}

	return a.download(ctx, imgURL)
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return providerName
}

// Capability returns the class of request this adapter serves.
func (a *Adapter) Capability() domain.Capability {
	return domain.CapabilityImage
}

func (a *Adapter) submit(ctx context.Context, prompt string) (string, *domain.AttemptResult) {
	body, err := json.Marshal(generateRequest{
		Prompt: prompt,
		Params: generateParams{Width: 512, Height: 512, Steps: 20, N: 1},
		Models: []string{a.model},
	})
	if err != nil {
		return "", &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/generate/async", bytes.NewReader(body))
	if err != nil {
		return "", &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", &domain.AttemptResult{
			Status:      classifyStatusCode(resp.StatusCode),
			ErrorDetail: fmt.Sprintf("submit status %d: %s", resp.StatusCode, respBody),
		}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.ID == "" {
		return "", &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: "submit response carried no job id"}
	}

	return parsed.ID, nil
}

func (a *Adapter) waitForJob(ctx context.Context, jobID string) (string, *domain.AttemptResult) {
	deadline := time.Now().Add(a.maxWait)
	timer := time.NewTimer(a.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: ctx.Err().Error()}
		case <-timer.C:
		}

		check, res := a.check(ctx, jobID)
		if res != nil {
			return "", res
		}

		if check.Faulted {
			return "", &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: "horde job faulted"}
		}

		if check.Done {
			return a.fetchResult(ctx, jobID)
		}

		if time.Now().After(deadline) {
			return "", &domain.AttemptResult{
				Status:      domain.StatusTransient,
				ErrorDetail: fmt.Sprintf("job still processing after %s", a.maxWait),
			}
		}

		timer.Reset(a.pollInterval)
	}
}

func (a *Adapter) check(ctx context.Context, jobID string) (*checkResponse, *domain.AttemptResult) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/generate/check/"+jobID, nil)
	if err != nil {
		return nil, &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.AttemptResult{
			Status:      classifyStatusCode(resp.StatusCode),
			ErrorDetail: fmt.Sprintf("check status %d", resp.StatusCode),
		}
	}

	var parsed checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}

	return &parsed, nil
}

func (a *Adapter) fetchResult(ctx context.Context, jobID string) (string, *domain.AttemptResult) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/generate/status/"+jobID, nil)
	if err != nil {
		return "", &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}

	if len(parsed.Generations) == 0 || parsed.Generations[0].Img == "" {
		return "", &domain.AttemptResult{Status: domain.StatusEmpty, ErrorDetail: "finished job carried no generations"}
	}

	return parsed.Generations[0].Img, nil
}

func (a *Adapter) download(ctx context.Context, imgURL string) *domain.AttemptResult {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: err.Error()}
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.AttemptResult{
			Status:      domain.StatusTransient,
			ErrorDetail: fmt.Sprintf("download status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return &domain.AttemptResult{Status: domain.StatusEmpty, ErrorDetail: "empty image download"}
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		// Horde workers deliver webp unless asked otherwise.
		mime = "image/webp"
	}

	return &domain.AttemptResult{
		Status:   domain.StatusSuccess,
		Payload:  data,
		MimeType: mime,
	}
}

func classifyStatusCode(statusCode int) domain.AttemptStatus {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return domain.StatusRateLimited
	case statusCode >= http.StatusInternalServerError:
		return domain.StatusTransient
	}
	return domain.StatusFatal
}
