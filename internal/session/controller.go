// Package session owns the single translation session of the process and
// relays its translated output into the relay queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/observability"
	"github.com/lexiqai/translation-relay/internal/relay"
	"github.com/lexiqai/translation-relay/internal/resilience"
	"github.com/lexiqai/translation-relay/internal/speech"
	"github.com/lexiqai/translation-relay/internal/translate"
)

var (
	// ErrNotConfigured is returned by Start before any Configure call
	ErrNotConfigured = errors.New("translation session is not configured")

	// ErrProviderUnavailable is returned by Start while the provider circuit is open
	ErrProviderUnavailable = errors.New("speech provider unavailable")

	// ErrNotRunning is returned when audio arrives with no running session
	ErrNotRunning = errors.New("no translation session is running")
)

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Status is a point-in-time snapshot of the controller
type Status struct {
	State          string     `json:"state"`
	Provider       string     `json:"provider"`
	SessionID      string     `json:"session_id,omitempty"`
	InputLanguage  string     `json:"input_language,omitempty"`
	OutputLanguage string     `json:"output_language,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	QueueDepth     int        `json:"queue_depth"`
}

// activeSession is one started recognizer and its bookkeeping
type activeSession struct {
	id         string
	cfg        speech.TranslationConfig
	recognizer speech.Recognizer
	metrics    *observability.SessionMetrics
	startedAt  time.Time
	logger     zerolog.Logger

	// accepting is cleared before the recognizer is stopped so late events
	// from the provider never reach the queue
	accepting atomic.Bool
}

// Controller holds at most one running translation session
type Controller struct {
	provider speech.Provider
	queue    *relay.Queue
	breaker  *resilience.CircuitBreaker
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	cfg     speech.TranslationConfig
	current *activeSession

	// translating is closed when translation ends. A restart replaces the
	// session but keeps the channel, so open streams keep draining.
	translating chan struct{}
}

// NewController creates a controller. breaker may be nil.
func NewController(provider speech.Provider, queue *relay.Queue, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *Controller {
	return &Controller{
		provider: provider,
		queue:    queue,
		breaker:  breaker,
		logger:   logger.With().Str("component", "session").Logger(),
		state:    StateIdle,
	}
}

// Configure stores the language pair for the next Start. A running session
// is stopped first; no provider call is made.
func (c *Controller) Configure(ctx context.Context, inputLanguage, outputLanguage string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked(ctx)
	c.endLocked()
	c.configureLocked(inputLanguage, outputLanguage)
}

// Restart binds the pair and starts a session in one step. Streams opened
// against a running session stay open unless the new start fails.
func (c *Controller) Restart(ctx context.Context, inputLanguage, outputLanguage string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		c.logger.Info().Str("session_id", c.current.id).Msg("Restarting translation session")
		c.stopLocked(ctx)
	}
	c.configureLocked(inputLanguage, outputLanguage)
	return c.startLocked(ctx)
}

func (c *Controller) configureLocked(inputLanguage, outputLanguage string) {
	c.cfg = speech.TranslationConfig{
		InputLanguage:  inputLanguage,
		OutputLanguage: outputLanguage,
	}
	c.state = StateConfigured

	c.logger.Info().
		Str("input_language", inputLanguage).
		Str("output_language", outputLanguage).
		Msg("Translation session configured")
}

// Start creates a recognizer for the configured pair and begins continuous
// recognition. A session that is already running is stopped first.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) error {
	if c.state == StateIdle {
		observability.RecordSessionStartFailure("not_configured")
		return ErrNotConfigured
	}

	if c.state == StateRunning {
		c.logger.Info().Str("session_id", c.current.id).Msg("Restarting translation session")
		c.stopLocked(ctx)
	}

	c.queue.Reset()
	observability.SetQueueDepth(0)

	sess := &activeSession{
		id:  uuid.New().String(),
		cfg: c.cfg,
	}
	sess.logger = c.logger.With().
		Str("session_id", sess.id).
		Str("input_language", sess.cfg.InputLanguage).
		Str("output_language", sess.cfg.OutputLanguage).
		Logger()

	err := c.callProvider(func() error {
		rec, err := c.provider.NewRecognizer(sess.cfg)
		if err != nil {
			return err
		}

		sess.accepting.Store(true)
		rec.Recognized(c.eventHandler(sess))

		if err := rec.StartContinuousRecognition(ctx); err != nil {
			sess.accepting.Store(false)
			rec.Close()
			return err
		}

		sess.recognizer = rec
		return nil
	})
	if err != nil {
		// Nothing runs now, so streams kept open across a restart end here
		c.endLocked()

		if errors.Is(err, resilience.ErrCircuitOpen) {
			observability.RecordSessionStartFailure("circuit_open")
			sess.logger.Warn().Msg("Speech provider circuit is open, not starting session")
			return fmt.Errorf("%w: %s", ErrProviderUnavailable, c.provider.Name())
		}

		observability.RecordSessionStartFailure("provider_error")
		observability.RecordError("start_failed", c.provider.Name())
		sess.logger.Error().Err(err).Msg("Failed to start translation session")
		return fmt.Errorf("failed to start %s recognition: %w", c.provider.Name(), err)
	}

	sess.startedAt = time.Now()
	sess.metrics = observability.NewSessionMetrics(sess.id)
	c.current = sess
	c.state = StateRunning
	if c.translating == nil {
		c.translating = make(chan struct{})
	}

	sess.logger.Info().Str("provider", c.provider.Name()).Msg("Translation session started")
	return nil
}

func (c *Controller) callProvider(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Call(fn)
}

// eventHandler returns the provider callback for sess. It runs on provider
// goroutines and must not take c.mu: stopping a recognizer waits for them.
func (c *Controller) eventHandler(sess *activeSession) speech.EventHandler {
	target := sess.cfg.OutputLanguage

	return func(event speech.RecognitionEvent) {
		defer func() {
			if r := recover(); r != nil {
				observability.RecordEvent(observability.OutcomePanic)
				sess.logger.Error().Interface("panic", r).Msg("Recovered from panic in recognition callback")
			}
		}()

		if !sess.accepting.Load() {
			return
		}

		if event.Reason != speech.ReasonTranslatedSpeech {
			observability.RecordEvent(observability.OutcomeNotTranslated)
			sess.logger.Debug().Str("reason", event.Reason.String()).Msg("Dropping untranslated event")
			return
		}

		text, ok := event.Translations[target]
		if !ok {
			text, ok = event.Translations[translate.BaseLanguage(target)]
		}
		if !ok {
			observability.RecordEvent(observability.OutcomeMissingTarget)
			sess.logger.Warn().Int("translations", len(event.Translations)).Msg("Translated event has no text for the target language")
			return
		}

		if dropped := c.queue.Push(text); dropped {
			observability.RecordQueueDrop()
			sess.logger.Warn().Int("capacity", c.queue.Cap()).Msg("Relay queue full, dropped oldest translation")
		}

		observability.RecordEvent(observability.OutcomeEnqueued)
		observability.SetQueueDepth(c.queue.Len())
	}
}

// Stop ends the running session and every open stream. It is a no-op when
// nothing is running.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked(ctx)
	c.endLocked()
}

func (c *Controller) endLocked() {
	if c.translating != nil {
		close(c.translating)
		c.translating = nil
	}
}

func (c *Controller) stopLocked(ctx context.Context) {
	if c.state != StateRunning || c.current == nil {
		return
	}

	sess := c.current
	sess.accepting.Store(false)

	if err := sess.recognizer.StopContinuousRecognition(ctx); err != nil {
		observability.RecordError("stop_failed", c.provider.Name())
		sess.logger.Warn().Err(err).Msg("Failed to stop continuous recognition cleanly")
	}
	if err := sess.recognizer.Close(); err != nil {
		sess.logger.Warn().Err(err).Msg("Failed to close recognizer")
	}

	sess.metrics.RecordSessionEnd()

	c.current = nil
	c.state = StateStopped

	sess.logger.Info().
		Dur("duration", time.Since(sess.startedAt)).
		Int("abandoned", c.queue.Len()).
		Msg("Translation session stopped")
}

// Running reports whether a session is running
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

// Done returns a channel closed when translation stops. A restart does not
// close it. When nothing is running the returned channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.translating == nil {
		return closedDone
	}
	return c.translating
}

// AcceptsAudio reports whether the running recognizer takes pushed audio
func (c *Controller) AcceptsAudio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return false
	}
	_, ok := c.current.recognizer.(speech.AudioWriter)
	return ok
}

// WriteAudio forwards PCM audio to the running recognizer. The write runs
// outside the lock; a recognizer stopped meanwhile rejects it on its own.
func (c *Controller) WriteAudio(p []byte) error {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil {
		return ErrNotRunning
	}

	writer, ok := sess.recognizer.(speech.AudioWriter)
	if !ok {
		return speech.ErrAudioNotAccepted
	}
	return writer.WriteAudio(p)
}

// Status returns a snapshot of the controller
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:          c.state.String(),
		Provider:       c.provider.Name(),
		InputLanguage:  c.cfg.InputLanguage,
		OutputLanguage: c.cfg.OutputLanguage,
		QueueDepth:     c.queue.Len(),
	}
	if c.current != nil {
		startedAt := c.current.startedAt
		status.SessionID = c.current.id
		status.StartedAt = &startedAt
	}
	return status
}
