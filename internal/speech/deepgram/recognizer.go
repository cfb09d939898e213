// Package deepgram implements speech.Provider on Deepgram's live streaming API.
// Audio is always pushed; recognized text is translated by a translate.Translator.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/observability"
	"github.com/lexiqai/translation-relay/internal/resilience"
	"github.com/lexiqai/translation-relay/internal/speech"
	"github.com/lexiqai/translation-relay/internal/translate"
)

var errNotActive = errors.New("deepgram stream is not active")

// liveStream is the part of listenClient.WSCallback the recognizer drives
type liveStream interface {
	Connect() bool
	Write(p []byte) (int, error)
	Finish()
}

type dialFunc func(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions, callback *messageCallbackHandler) (liveStream, error)

func dialDeepgram(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions, callback *messageCallbackHandler) (liveStream, error) {
	client, err := listenClient.NewWSUsingCallback(ctx, apiKey, nil, opts, callback)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Options configures the Deepgram provider
type Options struct {
	APIKey     string
	Model      string
	SampleRate int
	Translator translate.Translator
	Reconnect  *resilience.ReconnectConfig
	Logger     zerolog.Logger
}

// Provider creates Deepgram-backed recognizers
type Provider struct {
	opts Options
}

// NewProvider validates options and returns a provider
func NewProvider(opts Options) (*Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("deepgram provider requires an API key")
	}
	if opts.Translator == nil {
		return nil, fmt.Errorf("deepgram provider requires a translator")
	}
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Reconnect == nil {
		opts.Reconnect = resilience.DefaultReconnectConfig()
	}
	return &Provider{opts: opts}, nil
}

// Name implements speech.Provider
func (p *Provider) Name() string {
	return "deepgram"
}

// NewRecognizer implements speech.Provider. No connection is made until
// StartContinuousRecognition.
func (p *Provider) NewRecognizer(cfg speech.TranslationConfig) (speech.Recognizer, error) {
	if err := translate.CheckPair(p.opts.Translator, cfg.InputLanguage, cfg.OutputLanguage); err != nil {
		return nil, err
	}

	logger := p.opts.Logger.With().
		Str("provider", "deepgram").
		Str("input_language", cfg.InputLanguage).
		Str("output_language", cfg.OutputLanguage).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	return &recognizer{
		opts:     p.opts,
		cfg:      cfg,
		pipeline: speech.NewPipeline(cfg, p.opts.Translator, logger),
		logger:   logger,
		dial:     dialDeepgram,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// messageCallbackHandler embeds the default handler and overrides only the
// methods the recognizer needs
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message forwards transcription results to the recognizer
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error forwards stream errors to the recognizer
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

type recognizer struct {
	opts     Options
	cfg      speech.TranslationConfig
	pipeline *speech.Pipeline
	logger   zerolog.Logger
	dial     dialFunc

	mu           sync.RWMutex
	client       liveStream
	active       bool
	reconnecting bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// Recognized implements speech.Recognizer
func (r *recognizer) Recognized(handler speech.EventHandler) {
	r.pipeline.OnEvent(handler)
}

// StartContinuousRecognition implements speech.Recognizer
func (r *recognizer) StartContinuousRecognition(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.pipeline.Start()
	return r.connect()
}

func (r *recognizer) connect() error {
	r.mu.Lock()
	if err := r.ctx.Err(); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.active {
		r.mu.Unlock()
		return nil
	}
	stale := r.client
	r.client = nil
	r.mu.Unlock()

	// Finish runs unlocked: the failed client's callbacks take r.mu
	if stale != nil {
		stale.Finish()
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.opts.Model,
		Language:       r.cfg.InputLanguage,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     r.opts.SampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                r.handleMessage,
		errorHandler:           r.handleError,
	}

	client, err := r.dial(r.ctx, r.opts.APIKey, tOptions, callback)
	if err != nil {
		return fmt.Errorf("failed to create deepgram client: %w", err)
	}

	if !client.Connect() {
		client.Finish()
		return fmt.Errorf("failed to connect to deepgram")
	}

	r.mu.Lock()
	if err := r.ctx.Err(); err != nil {
		r.mu.Unlock()
		client.Finish()
		return err
	}
	r.client = client
	r.active = true
	r.mu.Unlock()

	r.logger.Info().Str("model", r.opts.Model).Msg("Deepgram stream connected")
	return nil
}

func (r *recognizer) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || msg.Type != "Results" || !msg.IsFinal {
		return
	}
	if len(msg.Channel.Alternatives) == 0 {
		return
	}

	transcript := msg.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return
	}

	r.logger.Debug().Str("transcript", transcript).Msg("Deepgram final transcript")
	r.pipeline.Submit(transcript)
}

func (r *recognizer) handleError(errorResponse *msginterfaces.ErrorResponse) error {
	r.logger.Error().Interface("error", errorResponse).Msg("Deepgram stream error")
	observability.RecordError("stream_error", "deepgram")

	if r.ctx.Err() != nil {
		return nil
	}

	r.mu.Lock()
	r.active = false
	alreadyReconnecting := r.reconnecting
	r.reconnecting = true
	r.mu.Unlock()

	if !alreadyReconnecting {
		go r.reconnect()
	}
	return nil
}

func (r *recognizer) reconnect() {
	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	if err := resilience.Reconnect(r.ctx, "deepgram", r.connect, r.opts.Reconnect); err != nil {
		r.logger.Error().Err(err).Msg("Failed to reconnect Deepgram stream")
	}
}

// WriteAudio implements speech.AudioWriter
func (r *recognizer) WriteAudio(p []byte) error {
	r.mu.RLock()
	active := r.active
	client := r.client
	r.mu.RUnlock()

	if !active || client == nil {
		return errNotActive
	}

	if _, err := client.Write(p); err != nil {
		observability.RecordError("send_error", "deepgram")
		return fmt.Errorf("failed to send audio to deepgram: %w", err)
	}
	return nil
}

// StopContinuousRecognition implements speech.Recognizer
func (r *recognizer) StopContinuousRecognition(ctx context.Context) error {
	r.release()
	r.logger.Info().Msg("Deepgram stream stopped")
	return nil
}

// Close implements speech.Recognizer
func (r *recognizer) Close() error {
	r.release()
	return nil
}

// release cancels reconnects, finishes the current client, live or failed,
// and stops the pipeline. Safe to call more than once.
func (r *recognizer) release() {
	r.cancel()

	r.mu.Lock()
	client := r.client
	r.client = nil
	r.active = false
	r.mu.Unlock()

	if client != nil {
		client.Finish()
	}
	r.pipeline.Stop()
}
