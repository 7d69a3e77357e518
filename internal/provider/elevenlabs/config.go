package elevenlabs

// Config contains ElevenLabs provider configuration.
type Config struct {
	APIKey       string `env:"ELEVENLABS_API_KEY"`
	BaseURL      string `env:"ELEVENLABS_BASE_URL"      envDefault:"https://api.elevenlabs.io/v1"`
	Model        string `env:"ELEVENLABS_MODEL"         envDefault:"eleven_turbo_v2_5"`
	DefaultVoice string `env:"ELEVENLABS_DEFAULT_VOICE" envDefault:"rachel"`
	Timeout      int    `env:"ELEVENLABS_TIMEOUT"       envDefault:"30"`
}
