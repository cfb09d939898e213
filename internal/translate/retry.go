package translate

import (
	"context"
	"time"

	"github.com/lexiqai/translation-relay/internal/observability"
	"github.com/lexiqai/translation-relay/internal/resilience"
)

// Resilient wraps a Translator with a per-call timeout, retry on transient
// errors, a same-language shortcut and latency metrics
type Resilient struct {
	next    Translator
	retry   *resilience.RetryConfig
	timeout time.Duration
}

// NewResilient wraps next. A zero timeout disables the per-call deadline.
func NewResilient(next Translator, retry *resilience.RetryConfig, timeout time.Duration) *Resilient {
	return &Resilient{
		next:    next,
		retry:   retry,
		timeout: timeout,
	}
}

// Translate implements Translator
func (r *Resilient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if SameLanguage(sourceLang, targetLang) {
		return Passthrough{}.Translate(ctx, text, sourceLang, targetLang)
	}

	start := time.Now()
	var translated string
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		out, err := r.next.Translate(callCtx, text, sourceLang, targetLang)
		if err != nil {
			return err
		}
		translated = out
		return nil
	}, r.retry, resilience.IsRetryableNetworkError)

	observability.RecordTranslate(time.Since(start), err == nil)
	if err != nil {
		observability.RecordError("translate", "translator")
		return "", err
	}
	return translated, nil
}

// CheckPair implements PairChecker by asking the wrapped translator
func (r *Resilient) CheckPair(sourceLang, targetLang string) error {
	return CheckPair(r.next, sourceLang, targetLang)
}
