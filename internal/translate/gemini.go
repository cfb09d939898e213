package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/lexiqai/translation-relay/internal/resilience"
)

const geminiSystemPrompt = "You translate live speech transcripts. Translate the user's text from %s to %s. " +
	"Reply with the translation only, without quotes, notes or explanations. " +
	"If the text is already in %s, return it unchanged."

// GeminiTranslator translates text with a Gemini model
type GeminiTranslator struct {
	client *genai.Client
	model  string
}

// NewGeminiTranslator creates a translator backed by the Gemini API
func NewGeminiTranslator(ctx context.Context, apiKey, model string) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini translator requires GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiTranslator{
		client: client,
		model:  model,
	}, nil
}

// Translate implements Translator
func (g *GeminiTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				genai.NewPartFromText(fmt.Sprintf(geminiSystemPrompt, sourceLang, targetLang, targetLang)),
			},
		},
	}
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
		// First candidate only
		break
	}

	translated := strings.TrimSpace(b.String())
	if translated == "" {
		return "", ErrEmptyTranslation
	}
	return translated, nil
}

// classifyGeminiError marks rate limits and server-side failures retryable
func classifyGeminiError(err error) error {
	wrapped := fmt.Errorf("gemini translate: %w", err)

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return wrapped
	}
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
		return resilience.NewRetryableError(wrapped)
	}
	return wrapped
}
