package pollinations

// Config contains Pollinations provider configuration. No credential is
// required; an optional API key lifts the free-tier rate limits.
type Config struct {
	APIKey       string `env:"POLLINATIONS_API_KEY"`
	TextBaseURL  string `env:"POLLINATIONS_TEXT_BASE_URL"  envDefault:"https://text.pollinations.ai"`
	ImageBaseURL string `env:"POLLINATIONS_IMAGE_BASE_URL" envDefault:"https://image.pollinations.ai"`
	TextModel    string `env:"POLLINATIONS_MODEL"          envDefault:"openai"`
	ImageModel   string `env:"POLLINATIONS_IMAGE_MODEL"    envDefault:"turbo"`
	Timeout      int    `env:"POLLINATIONS_TIMEOUT"        envDefault:"45"`
}
