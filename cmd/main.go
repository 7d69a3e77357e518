package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/verdant/internal/assets"
	"github.com/davidbz/verdant/internal/cache/memory"
	rediscache "github.com/davidbz/verdant/internal/cache/redis"
	"github.com/davidbz/verdant/internal/config"
	"github.com/davidbz/verdant/internal/domain"
	verdanthttp "github.com/davidbz/verdant/internal/http"
	"github.com/davidbz/verdant/internal/http/middleware"
	"github.com/davidbz/verdant/internal/limiter"
	"github.com/davidbz/verdant/internal/observability"
	"github.com/davidbz/verdant/internal/orchestrator"
	"github.com/davidbz/verdant/internal/provider/echo"
	"github.com/davidbz/verdant/internal/provider/elevenlabs"
	"github.com/davidbz/verdant/internal/provider/gemini"
	"github.com/davidbz/verdant/internal/provider/googletts"
	"github.com/davidbz/verdant/internal/provider/groq"
	"github.com/davidbz/verdant/internal/provider/pollinations"
	"github.com/davidbz/verdant/internal/provider/registry"
	"github.com/davidbz/verdant/internal/provider/stablehorde"
	"github.com/davidbz/verdant/internal/routing"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *verdanthttp.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus()
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Adapter Registry
	if err := container.Provide(func() domain.AdapterRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Register provider adapters (invoked for side effects)
	if err := container.Invoke(registerAdapters); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Session response cache: Redis when configured, in-memory otherwise.
	if err := container.Provide(func(redisCfg *config.RedisConfig) domain.ResponseCache {
		if redisCfg.Addr == "" {
			return memory.NewCache()
		}
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		return rediscache.NewCache(client, redisCfg.KeyPrefix)
	}); err != nil {
		log.Fatalf("Failed to provide response cache: %v", err)
	}

	// Orchestrator
	if err := container.Provide(newOrchestrator); err != nil {
		log.Fatalf("Failed to provide orchestrator: %v", err)
	}
	if err := container.Provide(func(o *orchestrator.Orchestrator) verdanthttp.Executor {
		return o
	}); err != nil {
		log.Fatalf("Failed to provide executor: %v", err)
	}

	// Admission control and routing
	if err := container.Provide(limiter.New); err != nil {
		log.Fatalf("Failed to provide limiter: %v", err)
	}
	if err := container.Provide(routing.NewRouter); err != nil {
		log.Fatalf("Failed to provide router: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(func(corsCfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(corsCfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware: %v", err)
	}
	if err := container.Provide(verdanthttp.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(verdanthttp.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// registerAdapters constructs and registers every adapter whose credential
// is present. A missing key silently drops the provider from its chains;
// the keyless universal fallbacks always register.
func registerAdapters(reg domain.AdapterRegistry, cfg *config.Config) error {
	ctx := context.Background()

	if cfg.Groq.APIKey != "" {
		adapter, err := groq.NewAdapter(cfg.Groq)
		if err != nil {
			return fmt.Errorf("groq: %w", err)
		}
		if err := reg.Register(ctx, adapter); err != nil {
			return fmt.Errorf("groq: %w", err)
		}
	}

	if cfg.Gemini.APIKey != "" {
		chat, err := gemini.NewChatAdapter(cfg.Gemini)
		if err != nil {
			return fmt.Errorf("gemini chat: %w", err)
		}
		if err := reg.Register(ctx, chat); err != nil {
			return fmt.Errorf("gemini chat: %w", err)
		}

		image, err := gemini.NewImageAdapter(cfg.Gemini)
		if err != nil {
			return fmt.Errorf("gemini image: %w", err)
		}
		if err := reg.Register(ctx, image); err != nil {
			return fmt.Errorf("gemini image: %w", err)
		}
	}

	if cfg.StableHorde.APIKey != "" {
		adapter, err := stablehorde.NewAdapter(cfg.StableHorde)
		if err != nil {
			return fmt.Errorf("stablehorde: %w", err)
		}
		if err := reg.Register(ctx, adapter); err != nil {
			return fmt.Errorf("stablehorde: %w", err)
		}
	}

	if cfg.ElevenLabs.APIKey != "" {
		adapter, err := elevenlabs.NewAdapter(cfg.ElevenLabs)
		if err != nil {
			return fmt.Errorf("elevenlabs: %w", err)
		}
		if err := reg.Register(ctx, adapter); err != nil {
			return fmt.Errorf("elevenlabs: %w", err)
		}
	}

	if cfg.GoogleTTS.APIKey != "" {
		adapter, err := googletts.NewAdapter(cfg.GoogleTTS)
		if err != nil {
			return fmt.Errorf("googletts: %w", err)
		}
		if err := reg.Register(ctx, adapter); err != nil {
			return fmt.Errorf("googletts: %w", err)
		}
	}

	if cfg.Echo.Enabled {
		if err := reg.Register(ctx, echo.NewAdapter()); err != nil {
			return fmt.Errorf("echo: %w", err)
		}
	}

	if err := reg.Register(ctx, pollinations.NewChatAdapter(cfg.Pollinations)); err != nil {
		return fmt.Errorf("pollinations chat: %w", err)
	}
	if err := reg.Register(ctx, pollinations.NewImageAdapter(cfg.Pollinations)); err != nil {
		return fmt.Errorf("pollinations image: %w", err)
	}

	return nil
}

func newOrchestrator(
	reg domain.AdapterRegistry,
	events domain.EventPublisher,
	cfg *config.Config,
	orchCfg *config.OrchestratorConfig,
	cacheCfg *config.CacheConfig,
) (*orchestrator.Orchestrator, error) {
	store, err := assets.NewStore(cacheCfg.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("assets store: %w", err)
	}

	return orchestrator.New(
		reg,
		orchestrator.DefaultTable(),
		cfg.Credentials(),
		memory.NewCache(),
		store,
		events,
		orchestrator.Config{
			MaxRetriesPerProvider: orchCfg.MaxRetriesPerProvider,
			BackoffBase:           orchCfg.BackoffBase,
			BackoffCap:            orchCfg.BackoffCap,
			ImageCacheTTL:         cacheCfg.ImageTTL,
		},
	), nil
}
