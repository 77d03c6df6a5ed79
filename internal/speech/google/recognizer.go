// Package google implements the speech collaborator contracts against the
// Google Cloud Speech-to-Text, Translation, and Text-to-Speech APIs.
//
// All clients rely on Application Default Credentials for authentication.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/nadzzz/crosstalk/internal/speech"
)

// Recognizer implements speech.Recognizer using Cloud Speech-to-Text.
type Recognizer struct {
	client *speechapi.Client
}

// NewRecognizer creates a Speech-to-Text client.
func NewRecognizer(ctx context.Context) (*Recognizer, error) {
	client, err := speechapi.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	return &Recognizer{client: client}, nil
}

// Recognize runs synchronous recognition over the conditioned audio and
// concatenates the top alternative of every result.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encodingFromTag(cfg.Encoding),
			SampleRateHertz: int32(cfg.SampleRateHertz),
			LanguageCode:    cfg.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}
	if len(cfg.Hints) > 0 {
		req.Config.SpeechContexts = []*speechpb.SpeechContext{{Phrases: cfg.Hints}}
	}

	resp, err := r.client.Recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("recognize request: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	transcript := strings.Join(parts, " ")

	slog.Debug("recognition complete", "results", len(resp.Results), "text_length", len(transcript))
	return transcript, nil
}

// Close releases the underlying gRPC connection.
func (r *Recognizer) Close() error { return r.client.Close() }

// encodingFromTag maps the pipeline's encoding tag onto the API enum,
// defaulting to LINEAR16 for unknown tags.
func encodingFromTag(tag string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(tag)]; ok {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
