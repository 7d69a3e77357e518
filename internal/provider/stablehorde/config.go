package stablehorde

import "time"

// Config contains AI Horde provider configuration.
type Config struct {
	APIKey       string        `env:"HORDE_API_KEY"`
	BaseURL      string        `env:"HORDE_BASE_URL"      envDefault:"https://stablehorde.net/api/v2"`
	Model        string        `env:"HORDE_MODEL"         envDefault:"stable_diffusion"`
	PollInterval time.Duration `env:"HORDE_POLL_INTERVAL" envDefault:"5s"`
	MaxWait      time.Duration `env:"HORDE_MAX_WAIT"      envDefault:"180s"`
	Timeout      int           `env:"HORDE_TIMEOUT"       envDefault:"30"`
}
