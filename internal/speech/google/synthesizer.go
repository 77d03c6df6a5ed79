package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/nadzzz/crosstalk/internal/speech"
	"github.com/nadzzz/crosstalk/internal/wav"
)

// Synthesizer implements speech.Synthesizer using Cloud Text-to-Speech.
type Synthesizer struct {
	client     *texttospeech.Client
	language   string
	voice      string
	sampleRate int
}

// NewSynthesizer creates a Text-to-Speech client for the given target
// language. voice may be empty to use the service default.
func NewSynthesizer(ctx context.Context, language, voice string, sampleRate int) (*Synthesizer, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating texttospeech client: %w", err)
	}
	return &Synthesizer{
		client:     client,
		language:   language,
		voice:      voice,
		sampleRate: sampleRate,
	}, nil
}

// Synthesize returns base64 raw PCM for the given text. The service emits
// LINEAR16 inside a WAV container; the container is parsed and stripped so
// the payload is headerless PCM as the pipeline's codec expects.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*speech.Synthesis, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.language,
			Name:         s.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(s.sampleRate),
		},
	}

	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("synthesize request: %w", err)
	}

	synth, err := synthesisFromContainer(resp.AudioContent)
	if err != nil {
		return nil, err
	}

	slog.Debug("synthesis complete", "language", s.language,
		"sample_rate", synth.SampleRate, "payload_length", len(synth.AudioBase64))
	return synth, nil
}

// synthesisFromContainer converts the service's WAV container into the
// headerless base64 payload the pipeline's codec expects. The container's
// own header is the authority on the sample rate — the service may ignore
// the requested rate for voices with a fixed natural rate.
func synthesisFromContainer(data []byte) (*speech.Synthesis, error) {
	_, rate, err := wav.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing synthesis container: %w", err)
	}
	return &speech.Synthesis{
		AudioBase64: base64.StdEncoding.EncodeToString(wav.StripHeader(data)),
		SampleRate:  int(rate),
	}, nil
}

// Close releases the underlying gRPC connection.
func (s *Synthesizer) Close() error { return s.client.Close() }
