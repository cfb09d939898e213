package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/translation-relay/internal/translate"
)

// Speech providers
const (
	ProviderAzure    = "azure"
	ProviderDeepgram = "deepgram"
)

// Audio sources
const (
	AudioSourceMicrophone = "microphone"
	AudioSourceWebSocket  = "websocket"
)

// Config holds all configuration for the translation relay service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"5000"`

	// Speech provider: azure or deepgram
	SpeechProvider string `envconfig:"SPEECH_PROVIDER" default:"azure"`

	// Where the recognizer reads audio from: the host's default microphone, or
	// PCM frames pushed by the browser over /audio.
	AudioSource string `envconfig:"AUDIO_SOURCE" default:"microphone"`

	// Azure Speech configuration
	SpeechKey    string `envconfig:"SPEECH_KEY"`
	SpeechRegion string `envconfig:"SPEECH_REGION"`

	// Deepgram STT configuration (only used with SPEECH_PROVIDER=deepgram)
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Gemini text translation
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Language pair used when /start_translation omits one
	DefaultInputLanguage  string `envconfig:"DEFAULT_INPUT_LANGUAGE" default:"hi-IN"`
	DefaultOutputLanguage string `envconfig:"DEFAULT_OUTPUT_LANGUAGE" default:"en"`

	// Relay queue and stream configuration
	QueueCapacity          int `envconfig:"QUEUE_CAPACITY" default:"1024"`         // Oldest item is dropped past this
	StreamPollInterval     int `envconfig:"STREAM_POLL_INTERVAL" default:"100"`    // Milliseconds
	StreamKeepAliveSeconds int `envconfig:"STREAM_KEEPALIVE_SECONDS" default:"15"` // 0 disables keep-alive frames

	// Audio input sample rate for pushed audio (PCM16 mono)
	AudioSampleRate int `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds
	TranslateTimeout           int `envconfig:"TRANSLATE_TIMEOUT" default:"10"`             // Seconds per translation call

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load(GetEnv("ENV_FILE", ".env"))

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.SpeechProvider = strings.ToLower(cfg.SpeechProvider)
	cfg.AudioSource = strings.ToLower(cfg.AudioSource)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks provider-specific required settings
func (c *Config) Validate() error {
	switch c.SpeechProvider {
	case ProviderAzure:
		if c.SpeechKey == "" {
			return fmt.Errorf("SPEECH_KEY is required")
		}
		if c.SpeechRegion == "" {
			return fmt.Errorf("SPEECH_REGION is required")
		}
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when SPEECH_PROVIDER=deepgram")
		}
		// Deepgram has no local microphone capture
		if c.AudioSource != AudioSourceWebSocket {
			return fmt.Errorf("SPEECH_PROVIDER=deepgram requires AUDIO_SOURCE=websocket")
		}
	default:
		return fmt.Errorf("unknown SPEECH_PROVIDER %q", c.SpeechProvider)
	}

	switch c.AudioSource {
	case AudioSourceMicrophone, AudioSourceWebSocket:
	default:
		return fmt.Errorf("unknown AUDIO_SOURCE %q", c.AudioSource)
	}

	// Recognizers only transcribe; a cross-language default needs Gemini
	if c.GeminiAPIKey == "" && !translate.SameLanguage(c.DefaultInputLanguage, c.DefaultOutputLanguage) {
		return fmt.Errorf("GEMINI_API_KEY is required to translate the default pair %s -> %s",
			c.DefaultInputLanguage, c.DefaultOutputLanguage)
	}

	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive")
	}
	if c.StreamPollInterval <= 0 {
		return fmt.Errorf("STREAM_POLL_INTERVAL must be positive")
	}

	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
