// Package speech defines the contract of an external speech-translation
// session: configure it with a language pair, start continuous recognition,
// receive recognition-complete events asynchronously, stop it.
//
// Concrete providers live in the azure and deepgram subpackages.
package speech

import (
	"context"
	"errors"
)

// ErrAudioNotAccepted is returned when audio is pushed to a recognizer that
// reads from a local input device
var ErrAudioNotAccepted = errors.New("recognizer does not accept pushed audio")

// ResultReason classifies a recognition-complete event
type ResultReason int

const (
	ReasonNoMatch          ResultReason = iota // Audio could not be recognized
	ReasonRecognizedSpeech                     // Recognized, but not translated
	ReasonTranslatedSpeech                     // Recognized and translated
	ReasonCanceled                             // Recognition was canceled by the provider
)

func (r ResultReason) String() string {
	switch r {
	case ReasonNoMatch:
		return "no_match"
	case ReasonRecognizedSpeech:
		return "recognized_speech"
	case ReasonTranslatedSpeech:
		return "translated_speech"
	case ReasonCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TranslationConfig ties one source language to one target language
type TranslationConfig struct {
	InputLanguage  string `json:"input_language"`
	OutputLanguage string `json:"output_language"`
}

// RecognitionEvent is emitted once per recognized utterance
type RecognitionEvent struct {
	Reason ResultReason
	// Text is the recognized source-language text
	Text string
	// Translations maps target language tag to translated text. Only set when
	// Reason is ReasonTranslatedSpeech.
	Translations map[string]string
}

// EventHandler receives recognition events on a provider-owned goroutine
type EventHandler func(RecognitionEvent)

// Recognizer is one continuous recognition session
type Recognizer interface {
	// Recognized registers the handler for recognition-complete events.
	// Must be called before StartContinuousRecognition.
	Recognized(handler EventHandler)

	// StartContinuousRecognition begins asynchronous recognition and returns
	// once the provider has accepted the session
	StartContinuousRecognition(ctx context.Context) error

	// StopContinuousRecognition ends recognition; no events are delivered
	// after it returns
	StopContinuousRecognition(ctx context.Context) error

	// Close releases provider resources
	Close() error
}

// AudioWriter is implemented by recognizers that are fed pushed audio
// (16-bit little-endian mono PCM) instead of reading a local device
type AudioWriter interface {
	WriteAudio(p []byte) error
}

// Provider creates recognizers for a language pair
type Provider interface {
	Name() string
	NewRecognizer(cfg TranslationConfig) (Recognizer, error)
}
