package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/config"
	"github.com/lexiqai/translation-relay/internal/resilience"
	"github.com/lexiqai/translation-relay/internal/speech"
	"github.com/lexiqai/translation-relay/internal/speech/azure"
	"github.com/lexiqai/translation-relay/internal/speech/deepgram"
	"github.com/lexiqai/translation-relay/internal/translate"
)

// newTranslator builds the text translation step used by every provider.
// Without GEMINI_API_KEY only same-language pairs produce output.
func newTranslator(ctx context.Context, cfg *config.Config) (translate.Translator, error) {
	var backend translate.Translator = translate.Unavailable{}

	if cfg.GeminiAPIKey != "" {
		gemini, err := translate.NewGeminiTranslator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		backend = gemini
	}

	retry := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}

	return translate.NewResilient(backend, retry, time.Duration(cfg.TranslateTimeout)*time.Second), nil
}

// newProvider selects the speech provider named by SPEECH_PROVIDER
func newProvider(cfg *config.Config, translator translate.Translator, logger zerolog.Logger) (speech.Provider, error) {
	switch cfg.SpeechProvider {
	case config.ProviderAzure:
		return azure.NewProvider(azure.Options{
			SubscriptionKey: cfg.SpeechKey,
			Region:          cfg.SpeechRegion,
			PushAudio:       cfg.AudioSource == config.AudioSourceWebSocket,
			SampleRate:      cfg.AudioSampleRate,
			Translator:      translator,
			Logger:          logger,
		})

	case config.ProviderDeepgram:
		return deepgram.NewProvider(deepgram.Options{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			SampleRate: cfg.AudioSampleRate,
			Translator: translator,
			Reconnect: &resilience.ReconnectConfig{
				MaxAttempts: cfg.ReconnectMaxAttempts,
				Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
				Multiplier:  2.0,
				MaxBackoff:  30 * time.Second,
			},
			Logger: logger,
		})

	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.SpeechProvider)
	}
}
