package gemini

// Config contains Gemini provider configuration, shared by the chat and
// image adapters.
type Config struct {
	APIKey     string `env:"GEMINI_API_KEY"`
	BaseURL    string `env:"GEMINI_BASE_URL"     envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ChatModel  string `env:"GEMINI_CHAT_MODEL"   envDefault:"gemini-2.0-flash"`
	ImageModel string `env:"GEMINI_IMAGE_MODEL"  envDefault:"imagen-3.0-fast-generate-001"`
	Timeout    int    `env:"GEMINI_TIMEOUT"      envDefault:"60"`
}
