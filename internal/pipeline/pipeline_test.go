package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/nadzzz/crosstalk/internal/config"
	"github.com/nadzzz/crosstalk/internal/speech"
	"github.com/nadzzz/crosstalk/internal/wav"
)

type stubConditioner struct {
	calls *[]string
	fn    func(ctx context.Context, runID string, raw []byte) ([]byte, error)
}

func (s *stubConditioner) Condition(ctx context.Context, runID string, raw []byte) ([]byte, error) {
	*s.calls = append(*s.calls, "condition")
	return s.fn(ctx, runID, raw)
}

type stubRecognizer struct {
	calls *[]string
	fn    func(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error)
}

func (s *stubRecognizer) Recognize(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
	*s.calls = append(*s.calls, "recognize")
	return s.fn(ctx, audio, cfg)
}

func (s *stubRecognizer) Close() error { return nil }

type stubTranslator struct {
	calls *[]string
	fn    func(ctx context.Context, text, src, tgt string) (string, error)
}

func (s *stubTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	*s.calls = append(*s.calls, "translate")
	return s.fn(ctx, text, src, tgt)
}

func (s *stubTranslator) Close() error { return nil }

type stubSynthesizer struct {
	calls *[]string
	fn    func(ctx context.Context, text string) (*speech.Synthesis, error)
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string) (*speech.Synthesis, error) {
	*s.calls = append(*s.calls, "synthesize")
	return s.fn(ctx, text)
}

func (s *stubSynthesizer) Close() error { return nil }

// fixture wires a pipeline whose collaborators all succeed; individual tests
// override the stubs they care about.
type fixture struct {
	calls       []string
	conditioner *stubConditioner
	recognizer  *stubRecognizer
	translator  *stubTranslator
	synthesizer *stubSynthesizer
	cfg         config.PipelineConfig
}

func newFixture() *fixture {
	f := &fixture{
		cfg: config.PipelineConfig{
			SourceLanguage:      "en-US",
			TargetLanguage:      "es-ES",
			VocabularyHints:     []string{"crosstalk"},
			SynthesisSampleRate: 24000,
		},
	}
	cleaned := wav.Encode([]int16{1, 2, 3, 4}, 16000)
	f.conditioner = &stubConditioner{calls: &f.calls, fn: func(ctx context.Context, runID string, raw []byte) ([]byte, error) {
		return cleaned, nil
	}}
	f.recognizer = &stubRecognizer{calls: &f.calls, fn: func(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
		return "hello", nil
	}}
	f.translator = &stubTranslator{calls: &f.calls, fn: func(ctx context.Context, text, src, tgt string) (string, error) {
		return "hello", nil
	}}
	f.synthesizer = &stubSynthesizer{calls: &f.calls, fn: func(ctx context.Context, text string) (*speech.Synthesis, error) {
		return &speech.Synthesis{
			AudioBase64: base64.StdEncoding.EncodeToString([]byte{100, 0, 156, 255}), // samples 100, -100
			SampleRate:  24000,
		}, nil
	}}
	return f
}

func (f *fixture) pipeline() *Pipeline {
	return New(f.conditioner, f.recognizer, f.translator, f.synthesizer, f.cfg, nil)
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture()

	res, err := f.pipeline().Run(context.Background(), []byte("raw audio"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Transcript != "hello" || res.Translation != "hello" {
		t.Errorf("texts = %q/%q, want hello/hello", res.Transcript, res.Translation)
	}
	if len(res.Audio) != 48 {
		t.Fatalf("output container = %d bytes, want 48", len(res.Audio))
	}
	if got := binary.LittleEndian.Uint32(res.Audio[4:8]); got != 40 {
		t.Errorf("riff size = %d, want 40", got)
	}
	if got := binary.LittleEndian.Uint32(res.Audio[40:44]); got != 4 {
		t.Errorf("data size = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint32(res.Audio[24:28]); got != 24000 {
		t.Errorf("sample rate = %d, want 24000", got)
	}
	if res.RunID == "" {
		t.Error("run id is empty")
	}
}

func TestRunStageOrdering(t *testing.T) {
	f := newFixture()

	if _, err := f.pipeline().Run(context.Background(), []byte("raw")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"condition", "recognize", "translate", "synthesize"}
	if len(f.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", f.calls, want)
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", f.calls, want)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline().Run(context.Background(), nil)

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateIdle {
		t.Errorf("stage = %s, want %s", staged.Stage, StateIdle)
	}
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("cause = %v, want ErrEmptyInput", err)
	}
	if len(f.calls) != 0 {
		t.Errorf("collaborators invoked on empty input: %v", f.calls)
	}
}

func TestRunEmptyTranscript(t *testing.T) {
	f := newFixture()
	f.recognizer.fn = func(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
		return "   ", nil
	}

	_, err := f.pipeline().Run(context.Background(), []byte("raw"))

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateRecognizing {
		t.Errorf("stage = %s, want %s", staged.Stage, StateRecognizing)
	}
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("cause = %v, want ErrEmptyTranscript", err)
	}
	for _, c := range f.calls {
		if c == "translate" || c == "synthesize" {
			t.Errorf("%s invoked after empty transcript", c)
		}
	}
}

func TestRunTranslatorFailure(t *testing.T) {
	f := newFixture()
	cause := errors.New("quota exceeded")
	f.translator.fn = func(ctx context.Context, text, src, tgt string) (string, error) {
		return "", cause
	}

	_, err := f.pipeline().Run(context.Background(), []byte("raw"))

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateTranslating {
		t.Errorf("stage = %s, want %s", staged.Stage, StateTranslating)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not preserved: %v", err)
	}
	for _, c := range f.calls {
		if c == "synthesize" {
			t.Error("synthesizer invoked after translation failure")
		}
	}
}

func TestRunConditionerFailure(t *testing.T) {
	f := newFixture()
	cause := errors.New("sox exploded")
	f.conditioner.fn = func(ctx context.Context, runID string, raw []byte) ([]byte, error) {
		return nil, cause
	}

	_, err := f.pipeline().Run(context.Background(), []byte("raw"))

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateConditioning {
		t.Errorf("stage = %s, want %s", staged.Stage, StateConditioning)
	}
	if len(f.calls) != 1 {
		t.Errorf("calls = %v, want only condition", f.calls)
	}
}

func TestRunEmptySynthesis(t *testing.T) {
	f := newFixture()
	f.synthesizer.fn = func(ctx context.Context, text string) (*speech.Synthesis, error) {
		return &speech.Synthesis{}, nil
	}

	_, err := f.pipeline().Run(context.Background(), []byte("raw"))

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateSynthesizing {
		t.Errorf("stage = %s, want %s", staged.Stage, StateSynthesizing)
	}
	if !errors.Is(err, ErrEmptySynthesis) {
		t.Errorf("cause = %v, want ErrEmptySynthesis", err)
	}
}

func TestRunMalformedSynthesisPayload(t *testing.T) {
	f := newFixture()
	f.synthesizer.fn = func(ctx context.Context, text string) (*speech.Synthesis, error) {
		return &speech.Synthesis{AudioBase64: "not base64!!!"}, nil
	}

	_, err := f.pipeline().Run(context.Background(), []byte("raw"))

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateSynthesizing {
		t.Errorf("stage = %s, want %s", staged.Stage, StateSynthesizing)
	}
	var decErr *wav.DecodeError
	if !errors.As(err, &decErr) {
		t.Errorf("cause = %v, want *wav.DecodeError", err)
	}
}

func TestRunRecognizerConfigMatchesConditionedAudio(t *testing.T) {
	f := newFixture()
	var got speech.RecognizeConfig
	f.recognizer.fn = func(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
		got = cfg
		return "hello", nil
	}

	if _, err := f.pipeline().Run(context.Background(), []byte("raw")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got.Encoding != "LINEAR16" {
		t.Errorf("encoding = %q, want LINEAR16", got.Encoding)
	}
	if got.SampleRateHertz != 16000 {
		t.Errorf("sample rate = %d, want 16000 (probed from conditioned audio)", got.SampleRateHertz)
	}
	if got.Language != "en-US" {
		t.Errorf("language = %q, want en-US", got.Language)
	}
	if len(got.Hints) != 1 || got.Hints[0] != "crosstalk" {
		t.Errorf("hints = %v, want [crosstalk]", got.Hints)
	}
}

func TestRunTextSkipsConditioningAndRecognition(t *testing.T) {
	f := newFixture()
	var translated string
	f.translator.fn = func(ctx context.Context, text, src, tgt string) (string, error) {
		translated = text
		return "hola", nil
	}

	res, err := f.pipeline().RunText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("RunText failed: %v", err)
	}

	if translated != "hello" {
		t.Errorf("translator input = %q, want hello", translated)
	}
	if res.Transcript != "hello" || res.Translation != "hola" {
		t.Errorf("texts = %q/%q, want hello/hola", res.Transcript, res.Translation)
	}
	for _, c := range f.calls {
		if c == "condition" || c == "recognize" {
			t.Errorf("%s invoked for text input", c)
		}
	}
}

func TestRunTextEmptyInput(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline().RunText(context.Background(), "  ")

	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("got %v, want ErrEmptyInput", err)
	}
}

func TestRunStageTimeout(t *testing.T) {
	f := newFixture()
	f.cfg.StageTimeout = 20 * time.Millisecond
	f.recognizer.fn = func(ctx context.Context, audio []byte, cfg speech.RecognizeConfig) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.pipeline().Run(context.Background(), []byte("raw"))

	var staged *StageError
	if !errors.As(err, &staged) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if staged.Stage != StateRecognizing {
		t.Errorf("stage = %s, want %s", staged.Stage, StateRecognizing)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause = %v, want context.DeadlineExceeded", err)
	}
}

func TestRunDefaultSynthesisSampleRate(t *testing.T) {
	f := newFixture()
	f.synthesizer.fn = func(ctx context.Context, text string) (*speech.Synthesis, error) {
		// Backend that does not report its rate.
		return &speech.Synthesis{
			AudioBase64: base64.StdEncoding.EncodeToString([]byte{1, 0}),
		}, nil
	}

	res, err := f.pipeline().Run(context.Background(), []byte("raw"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.SampleRate != 24000 {
		t.Errorf("sample rate = %d, want configured default 24000", res.SampleRate)
	}
}
