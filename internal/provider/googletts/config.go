package googletts

// Config contains Google Cloud Text-to-Speech provider configuration.
type Config struct {
	APIKey       string `env:"GOOGLE_TTS_API_KEY"`
	BaseURL      string `env:"GOOGLE_TTS_BASE_URL" envDefault:"https://texttospeech.googleapis.com/v1"`
	LanguageCode string `env:"GOOGLE_TTS_LANGUAGE" envDefault:"en-US"`
	VoiceName    string `env:"GOOGLE_TTS_VOICE"    envDefault:"en-US-Neural2-F"`
	Timeout      int    `env:"GOOGLE_TTS_TIMEOUT"  envDefault:"30"`
}
