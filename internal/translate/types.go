// Package translate turns recognized source-language text into the target
// language. Speech providers that only recognize speech hand each final
// utterance to a Translator before emitting a translated event.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTranslation is returned when a backend answers with no text
	ErrEmptyTranslation = errors.New("translator returned no text")

	// ErrNoBackend is returned for a cross-language pair when no translation
	// backend is configured
	ErrNoBackend = errors.New("no translation backend configured")
)

// Translator converts a single text segment to the target language
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// BaseLanguage strips the region/script subtags from a BCP-47 tag: "hi-IN" -> "hi"
func BaseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// SameLanguage reports whether two tags share a base language
func SameLanguage(a, b string) bool {
	return BaseLanguage(a) != "" && BaseLanguage(a) == BaseLanguage(b)
}

// Passthrough returns the text unchanged. Used when source and target share a
// base language so no translation call is made.
type Passthrough struct{}

func (Passthrough) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return text, nil
}

// PairChecker is implemented by translators that can tell up front whether
// they serve a language pair
type PairChecker interface {
	CheckPair(sourceLang, targetLang string) error
}

// CheckPair reports whether t can serve sourceLang -> targetLang. Same-language
// pairs always pass; translators without PairChecker are assumed to serve any pair.
func CheckPair(t Translator, sourceLang, targetLang string) error {
	if SameLanguage(sourceLang, targetLang) {
		return nil
	}
	if checker, ok := t.(PairChecker); ok {
		return checker.CheckPair(sourceLang, targetLang)
	}
	return nil
}

// Unavailable fails every call with ErrNoBackend. Wrapped in Resilient it
// still serves same-language pairs.
type Unavailable struct{}

func (Unavailable) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "", ErrNoBackend
}

// CheckPair implements PairChecker
func (Unavailable) CheckPair(sourceLang, targetLang string) error {
	return fmt.Errorf("%w: cannot translate %s to %s", ErrNoBackend, sourceLang, targetLang)
}
