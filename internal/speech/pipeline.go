package speech

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/translate"
)

const pipelineBacklog = 64

// Pipeline turns recognized source text into translated events for providers
// that only do recognition. Utterances are translated one at a time on a
// single goroutine so events leave in the order speech was recognized.
type Pipeline struct {
	cfg        TranslationConfig
	translator translate.Translator
	logger     zerolog.Logger

	mu      sync.RWMutex
	handler EventHandler

	started  bool
	texts    chan string
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPipeline creates a pipeline for one recognizer
func NewPipeline(cfg TranslationConfig, translator translate.Translator, logger zerolog.Logger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cfg:        cfg,
		translator: translator,
		logger:     logger,
		texts:      make(chan string, pipelineBacklog),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// OnEvent sets the handler that receives emitted events
func (p *Pipeline) OnEvent(handler EventHandler) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

// Start launches the translation goroutine
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true
	go p.run()
}

// Submit queues a recognized utterance for translation. It never blocks the
// provider's callback goroutine; when the backlog is full the utterance is
// emitted untranslated.
func (p *Pipeline) Submit(text string) {
	select {
	case <-p.ctx.Done():
		return
	default:
	}

	select {
	case p.texts <- text:
	default:
		p.logger.Warn().Int("backlog", pipelineBacklog).Msg("Translation backlog full, dropping utterance")
		p.emit(RecognitionEvent{Reason: ReasonRecognizedSpeech, Text: text})
	}
}

// NoMatch emits an event for audio the provider could not recognize
func (p *Pipeline) NoMatch() {
	p.emit(RecognitionEvent{Reason: ReasonNoMatch})
}

// Stop cancels in-flight translation and waits for the goroutine to exit.
// Pending utterances are discarded.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()

		p.mu.RLock()
		started := p.started
		p.mu.RUnlock()

		if started {
			<-p.done
		}
	})
}

func (p *Pipeline) run() {
	defer close(p.done)

	for {
		select {
		case <-p.ctx.Done():
			return
		case text := <-p.texts:
			p.emit(p.translate(text))
		}
	}
}

func (p *Pipeline) translate(text string) RecognitionEvent {
	translated, err := p.translator.Translate(p.ctx, text, p.cfg.InputLanguage, p.cfg.OutputLanguage)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("Failed to translate utterance")
		}
		return RecognitionEvent{Reason: ReasonRecognizedSpeech, Text: text}
	}

	return RecognitionEvent{
		Reason: ReasonTranslatedSpeech,
		Text:   text,
		Translations: map[string]string{
			p.cfg.OutputLanguage: translated,
		},
	}
}

func (p *Pipeline) emit(event RecognitionEvent) {
	if p.ctx.Err() != nil {
		return
	}

	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()

	if handler != nil {
		handler(event)
	}
}
