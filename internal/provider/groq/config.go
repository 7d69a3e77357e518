package groq

// Config contains Groq provider configuration. Groq exposes an
// OpenAI-compatible API, so the adapter drives it through the OpenAI SDK
// with an overridden base URL.
type Config struct {
	APIKey  string `env:"GROQ_API_KEY"`
	BaseURL string `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model   string `env:"GROQ_MODEL"    envDefault:"llama-3.3-70b-versatile"`
	Timeout int    `env:"GROQ_TIMEOUT"  envDefault:"45"`
}
