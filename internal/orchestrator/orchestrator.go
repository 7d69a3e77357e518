// Package orchestrator drives prioritized provider fallback chains: it walks
// each capability's chain in order, applies per-provider retry with
// exponential backoff, honors explicit quota signals by aborting the whole
// orchestration, and returns one normalized result regardless of which
// provider answered.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/verdant/internal/assets"
	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/observability"
)

const cacheKeyLength = 16 // hex chars of the sha256 request digest

// Config tunes retry and caching behavior.
type Config struct {
	MaxRetriesPerProvider int           // attempts per provider before moving on
	BackoffBase           time.Duration // first retry delay
	BackoffCap            time.Duration // ceiling for any single delay
	ImageCacheTTL         time.Duration // memoization window for generated images
}

// DefaultConfig returns the production retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetriesPerProvider: 2,
		BackoffBase:           2 * time.Second,
		BackoffCap:            60 * time.Second,
		ImageCacheTTL:         24 * time.Hour,
	}
}

// Orchestrator executes requests against fallback chains.
type Orchestrator struct {
	registry    domain.AdapterRegistry
	chains      *ChainTable
	credentials map[string]bool
	cache       domain.ResponseCache
	store       *assets.Store
	events      domain.EventPublisher
	cfg         Config

	// Image generation serializes process-wide: the free-tier backends
	// enforce one job at a time. Waiters queue on this channel and are
	// released on context cancellation.
	imageGate chan struct{}
}

// New creates an orchestrator. cache and store may be nil, disabling image
// memoization; events may be nil.
func New(
	registry domain.AdapterRegistry,
	chains *ChainTable,
	credentials map[string]bool,
	cache domain.ResponseCache,
	store *assets.Store,
	events domain.EventPublisher,
	cfg Config,
) *Orchestrator {
	if cfg.MaxRetriesPerProvider <= 0 {
		cfg.MaxRetriesPerProvider = DefaultConfig().MaxRetriesPerProvider
	}

	return &Orchestrator{
		registry:    registry,
		chains:      chains,
		credentials: credentials,
		cache:       cache,
		store:       store,
		events:      events,
		cfg:         cfg,
		imageGate:   make(chan struct{}, 1),
	}
}

// Execute drives the fallback chain for req and returns exactly one
// normalized result. Provider failures are folded into the result; the
// returned error is reserved for invalid input and context cancellation.
func (o *Orchestrator) Execute(ctx context.Context, req *domain.Request) (*domain.Result, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	ctx = observability.WithCapability(ctx, string(req.Capability))
	logger := observability.FromContext(ctx)

	if req.Capability == domain.CapabilityImage {
		if cached := o.lookupImage(ctx, req.Image); cached != nil {
			logger.Info("image cache hit")
			return cached, nil
		}

		select {
		case o.imageGate <- struct{}{}:
			defer func() { <-o.imageGate }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	chain := o.chains.Build(req.Capability, o.credentials)
	logger.Info("fallback chain built",
		observability.Int("providers", len(chain)))

	failures := make([]domain.ProviderFailure, 0, len(chain)+1)

	for _, spec := range chain {
		result, failure, err := o.tryProvider(ctx, spec.Name, req)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		failures = append(failures, *failure)
	}

	// Rate-limit aborts return from tryProvider directly; reaching this
	// point means every chained provider was exhausted recoverably. One
	// last shot: the keyless universal fallback.
	if name := o.chains.Universal(req.Capability); name != "" {
		result, failure := o.tryUniversal(ctx, name, req)
		if result != nil {
			return result, nil
		}
		if failure != nil {
			failures = append(failures, *failure)
		}
	}

	logger.Warn("all providers exhausted",
		observability.Int("failures", len(failures)))
	o.publish(ctx, "orchestration.exhausted", map[string]interface{}{
		"capability": string(req.Capability),
		"providers":  len(failures),
	})

	return &domain.Result{
		Success:    false,
		Capability: req.Capability,
		ErrorKind:  domain.ErrorKindChainExhausted,
		Failures:   failures,
		FinishTime: time.Now(),
	}, nil
}

// tryProvider drives one provider with the retry budget. It returns either
// a terminal result (success or rate-limit abort) or the provider's failure
// record for the aggregate report.
func (o *Orchestrator) tryProvider(
	ctx context.Context,
	name string,
	req *domain.Request,
) (*domain.Result, *domain.ProviderFailure, error) {
	adapter, err := o.registry.Get(ctx, req.Capability, name)
	if err != nil {
		return nil, &domain.ProviderFailure{
			Provider: name,
			Status:   domain.StatusFatal,
			Detail:   "adapter not registered",
		}, nil
	}

	ctx = observability.WithProvider(ctx, name)
	logger := observability.FromContext(ctx)

	var last *domain.AttemptResult

	for attempt := 1; attempt <= o.cfg.MaxRetriesPerProvider; attempt++ {
		last = adapter.Call(ctx, req)

		o.publish(ctx, "provider.attempt", map[string]interface{}{
			"provider": name,
			"attempt":  attempt,
			"status":   string(last.Status),
		})

		switch last.Status {
		case domain.StatusSuccess:
			logger.Info("provider succeeded",
				observability.Int("attempt", attempt))
			return o.buildSuccess(ctx, req, name, last), nil, nil

		case domain.StatusRateLimited:
			if last.RetryAfter > 0 {
				// Quota protection overrides availability: surface
				// the provider's requested delay to the caller and
				// stop the chain.
				logger.Warn("provider rate limited with explicit delay, aborting chain",
					observability.Duration("retry_after", last.RetryAfter))
				return &domain.Result{
					Success:    false,
					Capability: req.Capability,
					ErrorKind:  domain.ErrorKindRateLimited,
					RetryAfter: last.RetryAfter,
					Failures: []domain.ProviderFailure{{
						Provider: name,
						Status:   domain.StatusRateLimited,
						Detail:   last.ErrorDetail,
						Attempts: attempt,
					}},
					FinishTime: time.Now(),
				}, nil, nil
			}

		case domain.StatusEmpty, domain.StatusFatal:
			// Neither improves on retry; move to the next provider.
			logger.Warn("provider failed without retry",
				observability.String("status", string(last.Status)))
			return nil, &domain.ProviderFailure{
				Provider: name,
				Status:   last.Status,
				Detail:   last.ErrorDetail,
				Attempts: attempt,
			}, nil

		case domain.StatusTransient:
			// Retried below.
		}

		if attempt == o.cfg.MaxRetriesPerProvider {
			break
		}

		delay := backoffDelay(o.cfg.BackoffBase, o.cfg.BackoffCap, attempt-1)
		logger.Warn("provider attempt failed, backing off",
			observability.String("status", string(last.Status)),
			observability.Int("attempt", attempt),
			observability.Duration("delay", delay))

		if sleepErr := sleepCtx(ctx, delay); sleepErr != nil {
			return nil, nil, sleepErr
		}
	}

	logger.Warn("provider retry budget exhausted",
		observability.Int("attempts", o.cfg.MaxRetriesPerProvider))

	return nil, &domain.ProviderFailure{
		Provider: name,
		Status:   last.Status,
		Detail:   last.ErrorDetail,
		Attempts: o.cfg.MaxRetriesPerProvider,
	}, nil
}

// tryUniversal issues a single attempt against the keyless fallback; it is
// never retried.
func (o *Orchestrator) tryUniversal(
	ctx context.Context,
	name string,
	req *domain.Request,
) (*domain.Result, *domain.ProviderFailure) {
	adapter, err := o.registry.Get(ctx, req.Capability, name)
	if err != nil {
		return nil, nil
	}

	ctx = observability.WithProvider(ctx, name)
	observability.FromContext(ctx).Info("trying universal fallback")

	res := adapter.Call(ctx, req)

	o.publish(ctx, "provider.attempt", map[string]interface{}{
		"provider":  name,
		"attempt":   1,
		"status":    string(res.Status),
		"universal": true,
	})

	if res.Status == domain.StatusSuccess {
		return o.buildSuccess(ctx, req, name, res), nil
	}

	return nil, &domain.ProviderFailure{
		Provider: name,
		Status:   res.Status,
		Detail:   res.ErrorDetail,
		Attempts: 1,
	}
}

// buildSuccess normalizes a successful attempt and memoizes image artifacts.
func (o *Orchestrator) buildSuccess(
	ctx context.Context,
	req *domain.Request,
	provider string,
	res *domain.AttemptResult,
) *domain.Result {
	if req.Capability == domain.CapabilityImage {
		o.storeImage(ctx, req.Image, res)
	}

	return &domain.Result{
		Success:    true,
		Capability: req.Capability,
		Provider:   provider,
		Text:       res.Text,
		Payload:    res.Payload,
		MimeType:   res.MimeType,
		Usage:      res.Usage,
		FinishTime: time.Now(),
	}
}

// cacheRecord is the image cache index entry; the artifact bytes live in the
// assets store.
type cacheRecord struct {
	Ext      string `json:"ext"`
	MimeType string `json:"mime_type"`
	Provider string `json:"provider"`
}

// lookupImage returns a cached image result, evicting index entries whose
// backing artifact file is gone. Best-effort: any failure is a miss.
func (o *Orchestrator) lookupImage(ctx context.Context, img *domain.ImageRequest) *domain.Result {
	if o.cache == nil || o.store == nil {
		return nil
	}

	key := CacheKey(img)

	raw, err := o.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	var record cacheRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		_ = o.cache.Delete(ctx, key)
		return nil
	}

	if !o.store.Exists(key, record.Ext) {
		_ = o.cache.Delete(ctx, key)
		return nil
	}

	payload, err := o.store.Load(key, record.Ext)
	if err != nil {
		_ = o.cache.Delete(ctx, key)
		return nil
	}

	return &domain.Result{
		Success:    true,
		Capability: domain.CapabilityImage,
		Provider:   record.Provider,
		Payload:    payload,
		MimeType:   record.MimeType,
		Cached:     true,
		FinishTime: time.Now(),
	}
}

// storeImage persists the artifact and its index entry. Failures are logged
// and swallowed; caching never blocks a successful response.
func (o *Orchestrator) storeImage(ctx context.Context, img *domain.ImageRequest, res *domain.AttemptResult) {
	if o.cache == nil || o.store == nil || len(res.Payload) == 0 {
		return
	}

	logger := observability.FromContext(ctx)
	key := CacheKey(img)
	ext := extForMime(res.MimeType)

	if _, err := o.store.Save(key, ext, res.Payload); err != nil {
		logger.Warn("failed to persist image artifact", observability.Error(err))
		return
	}

	record, err := json.Marshal(cacheRecord{
		Ext:      ext,
		MimeType: res.MimeType,
		Provider: observability.GetProvider(ctx),
	})
	if err != nil {
		return
	}

	if err := o.cache.Set(ctx, key, record, o.cfg.ImageCacheTTL); err != nil {
		logger.Warn("failed to index image artifact", observability.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if o.events != nil {
		o.events.Publish(ctx, eventType, data)
	}
}

// CacheKey derives the deterministic memoization key for an image request
// from its significant fields.
func CacheKey(img *domain.ImageRequest) string {
	sum := sha256.Sum256([]byte(img.Prompt + "|" + img.AspectRatio))
	return hex.EncodeToString(sum[:])[:cacheKeyLength]
}

func extForMime(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

func validate(req *domain.Request) error {
	switch req.Capability {
	case domain.CapabilityChat:
		if req.Chat == nil || len(req.Chat.Messages) == 0 {
			return errors.New("chat request requires messages")
		}
	case domain.CapabilityImage:
		if req.Image == nil || req.Image.Prompt == "" {
			return errors.New("image request requires a prompt")
		}
	case domain.CapabilitySpeech:
		if req.Speech == nil || req.Speech.Text == "" {
			return errors.New("speech request requires text")
		}
	default:
		return fmt.Errorf("unknown capability: %s", req.Capability)
	}
	return nil
}
