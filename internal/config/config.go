// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/verdant/internal/provider/echo"
	"github.com/davidbz/verdant/internal/provider/elevenlabs"
	"github.com/davidbz/verdant/internal/provider/gemini"
	"github.com/davidbz/verdant/internal/provider/googletts"
	"github.com/davidbz/verdant/internal/provider/groq"
	"github.com/davidbz/verdant/internal/provider/pollinations"
	"github.com/davidbz/verdant/internal/provider/stablehorde"
)

// Config represents the service configuration.
type Config struct {
	Server       ServerConfig
	CORS         CORSConfig
	Redis        RedisConfig
	Orchestrator OrchestratorConfig
	Limits       LimitsConfig
	Cache        CacheConfig
	Groq         groq.Config
	Gemini       gemini.Config
	Pollinations pollinations.Config
	StableHorde  stablehorde.Config
	ElevenLabs   elevenlabs.Config
	GoogleTTS    googletts.Config
	Echo         echo.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"300"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RedisConfig contains the optional Redis backend settings for the session
// response cache. When Addr is empty the in-memory cache is used instead.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB"         envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"verdant"`
}

// OrchestratorConfig contains fallback and retry settings.
type OrchestratorConfig struct {
	MaxRetriesPerProvider int           `env:"MAX_RETRIES_PER_PROVIDER" envDefault:"2"`
	BackoffBase           time.Duration `env:"BACKOFF_BASE"             envDefault:"2s"`
	BackoffCap            time.Duration `env:"BACKOFF_CAP"              envDefault:"60s"`
}

// LimitsConfig contains per-session rate limit settings.
type LimitsConfig struct {
	ChatWindow    time.Duration `env:"CHAT_RATE_WINDOW"    envDefault:"60s"`
	ChatMax       int           `env:"CHAT_RATE_MAX"       envDefault:"10"`
	ImageCooldown time.Duration `env:"IMAGE_COOLDOWN"      envDefault:"15s"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	ChatTTL   time.Duration `env:"CHAT_CACHE_TTL"  envDefault:"30s"`
	ImageTTL  time.Duration `env:"IMAGE_CACHE_TTL" envDefault:"24h"`
	AssetsDir string        `env:"ASSETS_DIR"      envDefault:"generated_assets"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*RedisConfig
	*OrchestratorConfig
	*LimitsConfig
	*CacheConfig
	Groq         groq.Config
	Gemini       gemini.Config
	Pollinations pollinations.Config
	StableHorde  stablehorde.Config
	ElevenLabs   elevenlabs.Config
	GoogleTTS    googletts.Config
	Echo         echo.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Redis,
		&cfg.Orchestrator,
		&cfg.Limits,
		&cfg.Cache,
		cfg.Groq,
		cfg.Gemini,
		cfg.Pollinations,
		cfg.StableHorde,
		cfg.ElevenLabs,
		cfg.GoogleTTS,
		cfg.Echo,
	}
}

// Credentials reports which providers hold a usable credential. The
// orchestrator filters fallback chains against this map at request time.
func (c *Config) Credentials() map[string]bool {
	return map[string]bool{
		"groq":        c.Groq.APIKey != "",
		"gemini":      c.Gemini.APIKey != "",
		"stablehorde": c.StableHorde.APIKey != "",
		"elevenlabs":  c.ElevenLabs.APIKey != "",
		"googletts":   c.GoogleTTS.APIKey != "",
		"echo":        c.Echo.Enabled,
	}
}
