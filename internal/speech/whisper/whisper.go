// Package whisper implements speech.Recognizer against an OpenAI-compatible
// audio transcription endpoint (api.openai.com or a self-hosted whisper
// server exposing the same API).
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/nadzzz/crosstalk/internal/config"
	"github.com/nadzzz/crosstalk/internal/speech"
)

// Recognizer posts conditioned audio to a whisper transcription endpoint.
type Recognizer struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// New creates a whisper recognizer from config.
func New(cfg config.WhisperConfig) *Recognizer {
	return &Recognizer{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{},
	}
}

// Recognize uploads the audio as a multipart form and returns the transcript.
// Vocabulary hints are passed through the prompt field, which whisper uses to
// bias recognition toward domain terms.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}

	_ = writer.WriteField("model", r.model)
	if lang := baseLanguage(cfg.Language); lang != "" {
		_ = writer.WriteField("language", lang)
	}
	if len(cfg.Hints) > 0 {
		_ = writer.WriteField("prompt", strings.Join(cfg.Hints, ", "))
	}
	_ = writer.WriteField("response_format", "json")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("whisper transcription complete", "text_length", len(result.Text))
	return result.Text, nil
}

// Close is a no-op — connections are pooled by the HTTP client.
func (r *Recognizer) Close() error { return nil }

// baseLanguage reduces a BCP-47 tag to its ISO-639-1 base ("en-US" -> "en"),
// which is what the whisper API expects.
func baseLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
