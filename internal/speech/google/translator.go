package google

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
)

// Translator implements speech.Translator using the Cloud Translation API.
type Translator struct {
	client *translate.Client
}

// NewTranslator creates a Translation client.
func NewTranslator(ctx context.Context) (*Translator, error) {
	client, err := translate.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating translate client: %w", err)
	}
	return &Translator{client: client}, nil
}

// Translate converts text from sourceLang to targetLang (BCP-47 tags).
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	source, err := language.Parse(sourceLang)
	if err != nil {
		return "", fmt.Errorf("parsing source language %q: %w", sourceLang, err)
	}
	target, err := language.Parse(targetLang)
	if err != nil {
		return "", fmt.Errorf("parsing target language %q: %w", targetLang, err)
	}

	res, err := t.client.Translate(ctx, []string{text}, target, &translate.Options{
		Source: source,
		Format: translate.Text,
	})
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	if len(res) == 0 {
		return "", fmt.Errorf("translate returned no results")
	}

	slog.Debug("translation complete", "source", sourceLang, "target", targetLang,
		"text_length", len(res[0].Text))
	return res[0].Text, nil
}

// Close releases the underlying connection.
func (t *Translator) Close() error { return t.client.Close() }
