package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/verdant/internal/assets"
	"github.com/davidbz/verdant/internal/cache/memory"
	"github.com/davidbz/verdant/internal/domain"
	"github.com/davidbz/verdant/internal/orchestrator"
	"github.com/davidbz/verdant/internal/provider/registry"
)

// scriptedAdapter returns canned results in sequence and counts calls.
type scriptedAdapter struct {
	name       string
	capability domain.Capability
	results    []*domain.AttemptResult
	calls      int
}

func (s *scriptedAdapter) Call(_ context.Context, _ *domain.Request) *domain.AttemptResult {
	s.calls++
	if len(s.results) == 0 {
		return &domain.AttemptResult{Status: domain.StatusFatal, ErrorDetail: "no script"}
	}
	res := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return res
}

func (s *scriptedAdapter) Name() string { return s.name }

func (s *scriptedAdapter) Capability() domain.Capability { return s.capability }

func success(text string) *domain.AttemptResult {
	return &domain.AttemptResult{Status: domain.StatusSuccess, Text: text}
}

func transient() *domain.AttemptResult {
	return &domain.AttemptResult{Status: domain.StatusTransient, ErrorDetail: "upstream 503"}
}

func fastConfig() orchestrator.Config {
	return orchestrator.Config{
		MaxRetriesPerProvider: 2,
		BackoffBase:           time.Millisecond,
		BackoffCap:            5 * time.Millisecond,
		ImageCacheTTL:         time.Minute,
	}
}

func chatTable(providers []string, universal string) *orchestrator.ChainTable {
	specs := make([]domain.ProviderSpec, 0, len(providers))
	for i, name := range providers {
		specs = append(specs, domain.ProviderSpec{
			Capability:         domain.CapabilityChat,
			Name:               name,
			Priority:           i + 1,
			RequiresCredential: true,
		})
	}
	uni := map[domain.Capability]string{}
	if universal != "" {
		uni[domain.CapabilityChat] = universal
	}
	return orchestrator.NewChainTable(specs, uni)
}

func chatRequest() *domain.Request {
	return &domain.Request{
		Capability: domain.CapabilityChat,
		Chat: &domain.ChatRequest{
			Messages: []domain.Message{{Role: "user", Content: "how much is sod?"}},
		},
	}
}

func register(t *testing.T, reg *registry.Registry, adapters ...*scriptedAdapter) {
	t.Helper()
	for _, a := range adapters {
		require.NoError(t, reg.Register(context.Background(), a))
	}
}

func TestOrchestrator_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("should return after one call when the first provider succeeds", func(t *testing.T) {
		first := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("hi")}}
		second := &scriptedAdapter{name: "b", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("never")}}
		reg := registry.NewRegistry()
		register(t, reg, first, second)

		o := orchestrator.New(reg, chatTable([]string{"a", "b"}, ""),
			map[string]bool{"a": true, "b": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "a", result.Provider)
		require.Equal(t, "hi", result.Text)
		require.Equal(t, 1, first.calls)
		require.Zero(t, second.calls)
	})

	t.Run("should exhaust the retry budget on transient errors then advance", func(t *testing.T) {
		flaky := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{transient()}}
		backup := &scriptedAdapter{name: "b", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("from b")}}
		reg := registry.NewRegistry()
		register(t, reg, flaky, backup)

		o := orchestrator.New(reg, chatTable([]string{"a", "b"}, ""),
			map[string]bool{"a": true, "b": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "b", result.Provider)
		require.Equal(t, 2, flaky.calls)
		require.Equal(t, 1, backup.calls)
	})

	t.Run("should abort the chain on an explicit rate-limit delay", func(t *testing.T) {
		limited := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{{
			Status:     domain.StatusRateLimited,
			RetryAfter: 30 * time.Second,
		}}}
		backup := &scriptedAdapter{name: "b", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("never")}}
		keyless := &scriptedAdapter{name: "c", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("never")}}
		reg := registry.NewRegistry()
		register(t, reg, limited, backup, keyless)

		o := orchestrator.New(reg, chatTable([]string{"a", "b"}, "c"),
			map[string]bool{"a": true, "b": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, domain.ErrorKindRateLimited, result.ErrorKind)
		require.Equal(t, 30*time.Second, result.RetryAfter)
		require.Equal(t, 1, limited.calls)
		require.Zero(t, backup.calls)
		require.Zero(t, keyless.calls)
	})

	t.Run("should retry with backoff when rate limited without a delay", func(t *testing.T) {
		limited := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{
			{Status: domain.StatusRateLimited, ErrorDetail: "429 too many requests"},
			success("recovered"),
		}}
		reg := registry.NewRegistry()
		register(t, reg, limited)

		o := orchestrator.New(reg, chatTable([]string{"a"}, ""),
			map[string]bool{"a": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "recovered", result.Text)
		require.Equal(t, 2, limited.calls)
	})

	t.Run("should not retry an empty response", func(t *testing.T) {
		empty := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{{
			Status: domain.StatusEmpty,
		}}}
		backup := &scriptedAdapter{name: "b", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("b wins")}}
		reg := registry.NewRegistry()
		register(t, reg, empty, backup)

		o := orchestrator.New(reg, chatTable([]string{"a", "b"}, ""),
			map[string]bool{"a": true, "b": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, 1, empty.calls)
		require.Equal(t, 1, backup.calls)
	})

	t.Run("should return chain exhausted for an empty chain without any call", func(t *testing.T) {
		reg := registry.NewRegistry()

		o := orchestrator.New(reg, chatTable([]string{"a"}, ""),
			map[string]bool{}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, domain.ErrorKindChainExhausted, result.ErrorKind)
		require.Empty(t, result.Failures)
	})

	t.Run("should fall back to the universal provider after exhaustion", func(t *testing.T) {
		broken := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{transient()}}
		keyless := &scriptedAdapter{name: "pollinations", capability: domain.CapabilityChat, results: []*domain.AttemptResult{success("free tier")}}
		reg := registry.NewRegistry()
		register(t, reg, broken, keyless)

		o := orchestrator.New(reg, chatTable([]string{"a"}, "pollinations"),
			map[string]bool{"a": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "pollinations", result.Provider)
		require.Equal(t, 2, broken.calls)
		require.Equal(t, 1, keyless.calls)
	})

	t.Run("should aggregate every failure when the universal fallback also fails", func(t *testing.T) {
		broken := &scriptedAdapter{name: "a", capability: domain.CapabilityChat, results: []*domain.AttemptResult{transient()}}
		keyless := &scriptedAdapter{name: "u", capability: domain.CapabilityChat, results: []*domain.AttemptResult{{
			Status: domain.StatusFatal, ErrorDetail: "boom",
		}}}
		reg := registry.NewRegistry()
		register(t, reg, broken, keyless)

		o := orchestrator.New(reg, chatTable([]string{"a"}, "u"),
			map[string]bool{"a": true}, nil, nil, nil, fastConfig())

		result, err := o.Execute(ctx, chatRequest())

		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, domain.ErrorKindChainExhausted, result.ErrorKind)
		require.Len(t, result.Failures, 2)
		require.Equal(t, "a", result.Failures[0].Provider)
		require.Equal(t, 2, result.Failures[0].Attempts)
		require.Equal(t, "u", result.Failures[1].Provider)
	})

	t.Run("should reject invalid requests", func(t *testing.T) {
		o := orchestrator.New(registry.NewRegistry(), chatTable(nil, ""),
			nil, nil, nil, nil, fastConfig())

		_, err := o.Execute(ctx, nil)
		require.Error(t, err)

		_, err = o.Execute(ctx, &domain.Request{Capability: domain.CapabilityChat})
		require.Error(t, err)

		_, err = o.Execute(ctx, &domain.Request{Capability: "video"})
		require.Error(t, err)
	})
}

func TestOrchestrator_ImageCache(t *testing.T) {
	ctx := context.Background()

	imageTable := orchestrator.NewChainTable(
		[]domain.ProviderSpec{{
			Capability:         domain.CapabilityImage,
			Name:               "painter",
			Priority:           1,
			RequiresCredential: true,
		}},
		nil,
	)

	imageRequest := &domain.Request{
		Capability: domain.CapabilityImage,
		Image:      &domain.ImageRequest{Prompt: "a tidy garden", AspectRatio: "1:1"},
	}

	t.Run("should serve the second identical request from cache", func(t *testing.T) {
		painter := &scriptedAdapter{name: "painter", capability: domain.CapabilityImage, results: []*domain.AttemptResult{{
			Status:   domain.StatusSuccess,
			Payload:  []byte{0x89, 0x50, 0x4e, 0x47},
			MimeType: "image/png",
		}}}
		reg := registry.NewRegistry()
		register(t, reg, painter)

		store, err := assets.NewStore(t.TempDir())
		require.NoError(t, err)

		o := orchestrator.New(reg, imageTable, map[string]bool{"painter": true},
			memory.NewCache(), store, nil, fastConfig())

		first, err := o.Execute(ctx, imageRequest)
		require.NoError(t, err)
		require.True(t, first.Success)
		require.False(t, first.Cached)

		second, err := o.Execute(ctx, imageRequest)
		require.NoError(t, err)
		require.True(t, second.Success)
		require.True(t, second.Cached)
		require.Equal(t, first.Payload, second.Payload)
		require.Equal(t, 1, painter.calls)
	})

	t.Run("should treat a deleted artifact file as a miss", func(t *testing.T) {
		painter := &scriptedAdapter{name: "painter", capability: domain.CapabilityImage, results: []*domain.AttemptResult{
			{Status: domain.StatusSuccess, Payload: []byte("img-1"), MimeType: "image/png"},
			{Status: domain.StatusSuccess, Payload: []byte("img-2"), MimeType: "image/png"},
		}}
		reg := registry.NewRegistry()
		register(t, reg, painter)

		dir := t.TempDir()
		store, err := assets.NewStore(dir)
		require.NoError(t, err)

		o := orchestrator.New(reg, imageTable, map[string]bool{"painter": true},
			memory.NewCache(), store, nil, fastConfig())

		_, err = o.Execute(ctx, imageRequest)
		require.NoError(t, err)

		removeAll(t, dir)

		second, err := o.Execute(ctx, imageRequest)
		require.NoError(t, err)
		require.True(t, second.Success)
		require.False(t, second.Cached)
		require.Equal(t, 2, painter.calls)
	})
}

// removeAll deletes every artifact file in dir while keeping the directory.
func removeAll(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, os.Remove(filepath.Join(dir, e.Name())))
	}
}
