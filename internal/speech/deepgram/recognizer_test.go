package deepgram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	"github.com/rs/zerolog"

	"github.com/lexiqai/translation-relay/internal/speech"
	"github.com/lexiqai/translation-relay/internal/translate"
)

type echoTranslator struct{}

func (echoTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "[" + targetLang + "] " + text, nil
}

func newTestRecognizer(t *testing.T) *recognizer {
	t.Helper()
	p, err := NewProvider(Options{APIKey: "test-key", Translator: echoTranslator{}, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	rec, err := p.NewRecognizer(speech.TranslationConfig{InputLanguage: "hi", OutputLanguage: "en"})
	if err != nil {
		t.Fatalf("NewRecognizer failed: %v", err)
	}
	return rec.(*recognizer)
}

func results(transcript string, final bool) *msginterfaces.MessageResponse {
	return &msginterfaces.MessageResponse{
		Type:    "Results",
		IsFinal: final,
		Channel: msginterfaces.Channel{
			Alternatives: []msginterfaces.Alternative{{Transcript: transcript}},
		},
	}
}

func TestNewProvider_Validation(t *testing.T) {
	if _, err := NewProvider(Options{Translator: echoTranslator{}}); err == nil {
		t.Error("Expected error without an API key")
	}
	if _, err := NewProvider(Options{APIKey: "k"}); err == nil {
		t.Error("Expected error without a translator")
	}

	p, err := NewProvider(Options{APIKey: "k", Translator: echoTranslator{}})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Name() != "deepgram" {
		t.Errorf("Expected name 'deepgram', got %q", p.Name())
	}
	if p.opts.Model != "nova-2" || p.opts.SampleRate != 16000 || p.opts.Reconnect == nil {
		t.Errorf("Expected defaults to be applied, got %+v", p.opts)
	}
}

func TestRecognizer_AcceptsPushedAudio(t *testing.T) {
	rec := newTestRecognizer(t)
	defer rec.Close()

	var _ speech.AudioWriter = rec

	if err := rec.WriteAudio([]byte{0, 1}); !errors.Is(err, errNotActive) {
		t.Errorf("Expected errNotActive before connecting, got %v", err)
	}
}

func TestRecognizer_OnlyFinalResultsAreTranslated(t *testing.T) {
	rec := newTestRecognizer(t)
	defer rec.Close()

	events := make(chan speech.RecognitionEvent, 10)
	rec.Recognized(func(e speech.RecognitionEvent) { events <- e })
	rec.pipeline.Start()

	rec.handleMessage(nil)
	rec.handleMessage(results("partial", false))
	rec.handleMessage(results("", true))
	rec.handleMessage(&msginterfaces.MessageResponse{Type: "UtteranceEnd"})
	rec.handleMessage(results("namaste", true))

	select {
	case e := <-events:
		if e.Reason != speech.ReasonTranslatedSpeech {
			t.Errorf("Expected translated_speech, got %s", e.Reason)
		}
		if got := e.Translations["en"]; got != "[en] namaste" {
			t.Errorf("Expected '[en] namaste', got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for translated event")
	}

	select {
	case e := <-events:
		t.Errorf("Expected a single event, got extra %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecognizer_StopIsIdempotent(t *testing.T) {
	rec := newTestRecognizer(t)

	if err := rec.StopContinuousRecognition(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := rec.StartContinuousRecognition(context.Background()); err == nil {
		t.Error("Expected start after stop to fail")
	}
}

type fakeStream struct {
	mu       sync.Mutex
	connects bool
	finished bool
	writes   int
}

func (s *fakeStream) Connect() bool { return s.connects }

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return len(p), nil
}

func (s *fakeStream) Finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
}

func (s *fakeStream) isFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func withFakeDial(rec *recognizer, connects ...bool) *[]*fakeStream {
	var streams []*fakeStream
	rec.dial = func(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions, callback *messageCallbackHandler) (liveStream, error) {
		s := &fakeStream{connects: connects[len(streams)]}
		streams = append(streams, s)
		return s, nil
	}
	return &streams
}

func TestRecognizer_ReconnectFinishesFailedClient(t *testing.T) {
	rec := newTestRecognizer(t)
	streams := withFakeDial(rec, true, true)

	if err := rec.StartContinuousRecognition(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := rec.WriteAudio([]byte{0, 1}); err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}

	// The stream dropped; handleError marks it inactive before reconnecting
	rec.mu.Lock()
	rec.active = false
	rec.mu.Unlock()

	if err := rec.connect(); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}

	first, second := (*streams)[0], (*streams)[1]
	if !first.isFinished() {
		t.Error("Expected the failed client to be finished on reconnect")
	}
	if second.isFinished() {
		t.Error("Expected the new client to stay open")
	}

	rec.Close()
	if !second.isFinished() {
		t.Error("Expected Close to finish the current client")
	}
}

func TestRecognizer_FailedConnectFinishesClient(t *testing.T) {
	rec := newTestRecognizer(t)
	defer rec.Close()
	streams := withFakeDial(rec, false)

	if err := rec.StartContinuousRecognition(context.Background()); err == nil {
		t.Fatal("Expected start to fail when the stream does not connect")
	}
	if !(*streams)[0].isFinished() {
		t.Error("Expected the unconnected client to be finished")
	}
	if err := rec.WriteAudio([]byte{0}); !errors.Is(err, errNotActive) {
		t.Errorf("Expected errNotActive, got %v", err)
	}
}

func TestProvider_RejectsPairWithoutTranslator(t *testing.T) {
	p, err := NewProvider(Options{APIKey: "k", Translator: translate.NewResilient(translate.Unavailable{}, nil, 0), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	_, err = p.NewRecognizer(speech.TranslationConfig{InputLanguage: "hi-IN", OutputLanguage: "en"})
	if !errors.Is(err, translate.ErrNoBackend) {
		t.Errorf("Expected ErrNoBackend for hi-IN -> en, got %v", err)
	}

	rec, err := p.NewRecognizer(speech.TranslationConfig{InputLanguage: "en-US", OutputLanguage: "en"})
	if err != nil {
		t.Fatalf("Expected same-language pair to be served: %v", err)
	}
	rec.Close()
}
