// Package azure implements speech.Provider on the Azure Speech SDK.
//
// Azure recognizes speech in the source language; each final utterance is
// then handed to a translate.Translator for the single target language.
package azure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	azspeech "github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/speech"
	"github.com/lexiqai/translation-relay/internal/translate"
)

var errStreamClosed = errors.New("azure push stream is closed")

// Options configures the Azure provider
type Options struct {
	SubscriptionKey string
	Region          string
	// PushAudio selects pushed PCM audio over the default microphone
	PushAudio  bool
	SampleRate int
	Translator translate.Translator
	Logger     zerolog.Logger
}

// Provider creates Azure-backed recognizers
type Provider struct {
	opts Options
}

// NewProvider validates credentials and returns a provider
func NewProvider(opts Options) (*Provider, error) {
	if opts.SubscriptionKey == "" || opts.Region == "" {
		return nil, fmt.Errorf("azure provider requires subscription key and region")
	}
	if opts.Translator == nil {
		return nil, fmt.Errorf("azure provider requires a translator")
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	return &Provider{opts: opts}, nil
}

// Name implements speech.Provider
func (p *Provider) Name() string {
	return "azure"
}

// NewRecognizer implements speech.Provider
func (p *Provider) NewRecognizer(cfg speech.TranslationConfig) (speech.Recognizer, error) {
	if err := translate.CheckPair(p.opts.Translator, cfg.InputLanguage, cfg.OutputLanguage); err != nil {
		return nil, err
	}

	logger := p.opts.Logger.With().
		Str("provider", "azure").
		Str("input_language", cfg.InputLanguage).
		Str("output_language", cfg.OutputLanguage).
		Logger()

	speechConfig, err := azspeech.NewSpeechConfigFromSubscription(p.opts.SubscriptionKey, p.opts.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure speech config: %w", err)
	}

	if err := speechConfig.SetSpeechRecognitionLanguage(cfg.InputLanguage); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set recognition language %q: %w", cfg.InputLanguage, err)
	}

	r := &recognizer{
		speechConfig: speechConfig,
		pipeline:     speech.NewPipeline(cfg, p.opts.Translator, logger),
		logger:       logger,
	}

	if err := r.openAudio(p.opts.PushAudio, p.opts.SampleRate); err != nil {
		r.Close()
		return nil, err
	}

	r.recognizer, err = azspeech.NewSpeechRecognizerFromConfig(speechConfig, r.audioConfig)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create azure recognizer: %w", err)
	}

	r.connectCallbacks()

	if p.opts.PushAudio {
		return &pushRecognizer{recognizer: r}, nil
	}
	return r, nil
}

// recognizer adapts an Azure SpeechRecognizer to speech.Recognizer
type recognizer struct {
	speechConfig *azspeech.SpeechConfig
	audioConfig  *audio.AudioConfig
	pushStream   *audio.PushAudioInputStream
	recognizer   *azspeech.SpeechRecognizer
	pipeline     *speech.Pipeline
	logger       zerolog.Logger
}

func (r *recognizer) openAudio(push bool, sampleRate int) error {
	if !push {
		audioConfig, err := audio.NewAudioConfigFromDefaultMicrophoneInput()
		if err != nil {
			return fmt.Errorf("failed to open default microphone: %w", err)
		}
		r.audioConfig = audioConfig
		return nil
	}

	audioFormat, err := audio.GetWaveFormatPCM(uint32(sampleRate), 16, 1)
	if err != nil {
		return fmt.Errorf("could not create audio format: %w", err)
	}
	defer audioFormat.Close()

	r.pushStream, err = audio.CreatePushAudioInputStreamFromFormat(audioFormat)
	if err != nil {
		return fmt.Errorf("could not create push audio stream: %w", err)
	}

	r.audioConfig, err = audio.NewAudioConfigFromStreamInput(r.pushStream)
	if err != nil {
		return fmt.Errorf("failed to create audio config: %w", err)
	}
	return nil
}

func (r *recognizer) connectCallbacks() {
	r.recognizer.SessionStarted(func(e azspeech.SessionEventArgs) {
		defer e.Close()
		r.logger.Info().Str("azure_session_id", e.SessionID).Msg("Azure recognition session started")
	})

	r.recognizer.SessionStopped(func(e azspeech.SessionEventArgs) {
		defer e.Close()
		r.logger.Info().Str("azure_session_id", e.SessionID).Msg("Azure recognition session stopped")
	})

	r.recognizer.Recognized(func(e azspeech.SpeechRecognitionEventArgs) {
		defer e.Close()

		if e.Result.Reason != common.RecognizedSpeech || e.Result.Text == "" {
			r.pipeline.NoMatch()
			return
		}
		r.pipeline.Submit(e.Result.Text)
	})

	r.recognizer.Canceled(func(e azspeech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		r.logger.Warn().Str("details", e.ErrorDetails).Msg("Azure recognition canceled")
	})
}

// Recognized implements speech.Recognizer
func (r *recognizer) Recognized(handler speech.EventHandler) {
	r.pipeline.OnEvent(handler)
}

// StartContinuousRecognition implements speech.Recognizer
func (r *recognizer) StartContinuousRecognition(ctx context.Context) error {
	r.pipeline.Start()

	select {
	case err := <-r.recognizer.StartContinuousRecognitionAsync():
		if err != nil {
			return fmt.Errorf("failed to start azure recognition: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopContinuousRecognition implements speech.Recognizer
func (r *recognizer) StopContinuousRecognition(ctx context.Context) error {
	defer r.pipeline.Stop()

	select {
	case err := <-r.recognizer.StopContinuousRecognitionAsync():
		if err != nil {
			return fmt.Errorf("failed to stop azure recognition: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements speech.Recognizer
func (r *recognizer) Close() error {
	r.pipeline.Stop()

	if r.recognizer != nil {
		r.recognizer.Close()
	}
	if r.audioConfig != nil {
		r.audioConfig.Close()
	}
	if r.pushStream != nil {
		r.pushStream.Close()
	}
	if r.speechConfig != nil {
		r.speechConfig.Close()
	}
	return nil
}

// pushRecognizer is a recognizer fed by speech.AudioWriter
type pushRecognizer struct {
	*recognizer

	mu     sync.RWMutex
	closed bool
}

// WriteAudio implements speech.AudioWriter
func (r *pushRecognizer) WriteAudio(p []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return errStreamClosed
	}
	if err := r.pushStream.Write(p); err != nil {
		return fmt.Errorf("failed to push audio: %w", err)
	}
	return nil
}

// Close waits for in-flight writes before the push stream is released
func (r *pushRecognizer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return r.recognizer.Close()
}
