// Package pipeline implements the sequencing orchestrator that drives one
// run through Conditioning → Recognizing → Translating → Synthesizing →
// Complete.
//
// The orchestrator owns stage transitions and error containment: any
// collaborator failure, timeout, or empty-result condition moves the run to
// Failed, tagged with the stage and cause, after every temporary resource
// allocated so far has been released. A run is attempted exactly once —
// there is no retry anywhere in the pipeline. Runs are independent and may
// execute concurrently; the only shared infrastructure is the collaborator
// clients, which are safe for concurrent use.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/crosstalk/internal/config"
	"github.com/nadzzz/crosstalk/internal/metrics"
	"github.com/nadzzz/crosstalk/internal/speech"
	"github.com/nadzzz/crosstalk/internal/wav"
)

// pcmEncoding is the encoding tag reported to recognition for conditioned
// audio.
const pcmEncoding = "LINEAR16"

// Conditioner is the DSP stage contract. *dsp.Conditioner satisfies it.
type Conditioner interface {
	Condition(ctx context.Context, runID string, raw []byte) ([]byte, error)
}

// Result is a successful run's outcome: the final encoded container plus
// the intermediate texts for callers that want them echoed back.
type Result struct {
	RunID       string
	Transcript  string
	Translation string
	Audio       []byte // canonical WAV container
	SampleRate  int
}

// Pipeline orchestrates one-shot speech translation runs.
type Pipeline struct {
	conditioner Conditioner
	recognizer  speech.Recognizer
	translator  speech.Translator
	synthesizer speech.Synthesizer
	cfg         config.PipelineConfig
	metrics     *metrics.Metrics // nil disables instrumentation
}

// New creates a Pipeline with the given collaborators. metrics may be nil.
func New(conditioner Conditioner, recognizer speech.Recognizer, translator speech.Translator,
	synthesizer speech.Synthesizer, cfg config.PipelineConfig, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		conditioner: conditioner,
		recognizer:  recognizer,
		translator:  translator,
		synthesizer: synthesizer,
		cfg:         cfg,
		metrics:     m,
	}
}

// run tracks one invocation's identity and state.
type run struct {
	id     string
	state  State
	logger *slog.Logger
}

func (p *Pipeline) newRun() *run {
	id := uuid.NewString()
	if p.metrics != nil {
		p.metrics.RunsStarted.Inc()
	}
	return &run{
		id:     id,
		state:  StateIdle,
		logger: slog.With("run_id", id),
	}
}

// transition advances the run to the next stage.
func (r *run) transition(next State) {
	r.logger.Debug("stage transition", "from", string(r.state), "to", string(next))
	r.state = next
}

// fail moves the run to Failed and returns the stage-tagged error. The
// stage recorded is the one that was executing when the failure occurred.
func (p *Pipeline) fail(r *run, err error) error {
	staged := &StageError{Stage: r.state, Err: err}
	r.logger.Error("run failed", "stage", string(r.state), "error", err)
	if p.metrics != nil {
		p.metrics.RunsFailed.WithLabelValues(string(r.state)).Inc()
	}
	r.state = StateFailed
	return staged
}

// stageCtx derives the per-stage deadline context.
func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// observe records a completed stage's duration.
func (p *Pipeline) observe(stage State, start time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

// Run drives a full audio-in run: conditioning, recognition, translation,
// synthesis, and final encoding.
func (p *Pipeline) Run(ctx context.Context, audio []byte) (*Result, error) {
	r := p.newRun()
	if len(audio) == 0 {
		return nil, p.fail(r, ErrEmptyInput)
	}
	r.logger.Info("run started", "input_bytes", len(audio))

	// Conditioning
	r.transition(StateConditioning)
	start := time.Now()
	condCtx, cancel := p.stageCtx(ctx)
	cleaned, err := p.conditioner.Condition(condCtx, r.id, audio)
	cancel()
	if err != nil {
		return nil, p.fail(r, err)
	}
	info, err := wav.Probe(cleaned)
	if err != nil {
		return nil, p.fail(r, err)
	}
	p.observe(StateConditioning, start)

	// Recognizing
	r.transition(StateRecognizing)
	start = time.Now()
	recCtx, cancel := p.stageCtx(ctx)
	transcript, err := p.recognizer.Recognize(recCtx, cleaned, speech.RecognizeConfig{
		Encoding:        pcmEncoding,
		SampleRateHertz: info.SampleRate,
		Language:        p.cfg.SourceLanguage,
		Hints:           p.cfg.VocabularyHints,
	})
	cancel()
	if err != nil {
		return nil, p.fail(r, err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, p.fail(r, ErrEmptyTranscript)
	}
	p.observe(StateRecognizing, start)
	r.logger.Info("recognition complete", "text_length", len(transcript))

	return p.finish(ctx, r, transcript)
}

// RunText drives a text-in run. Conditioning is skipped: the run enters
// Recognizing directly with the given text as its transcript.
func (p *Pipeline) RunText(ctx context.Context, text string) (*Result, error) {
	r := p.newRun()
	if strings.TrimSpace(text) == "" {
		return nil, p.fail(r, ErrEmptyInput)
	}
	r.logger.Info("run started", "text_length", len(text))

	r.transition(StateRecognizing)
	return p.finish(ctx, r, text)
}

// finish runs the shared tail of both entry paths: translation, synthesis,
// and final encoding.
func (p *Pipeline) finish(ctx context.Context, r *run, transcript string) (*Result, error) {
	// Translating
	r.transition(StateTranslating)
	start := time.Now()
	trCtx, cancel := p.stageCtx(ctx)
	translated, err := p.translator.Translate(trCtx, transcript, p.cfg.SourceLanguage, p.cfg.TargetLanguage)
	cancel()
	if err != nil {
		return nil, p.fail(r, err)
	}
	p.observe(StateTranslating, start)
	r.logger.Info("translation complete", "text_length", len(translated))

	// Synthesizing
	r.transition(StateSynthesizing)
	start = time.Now()
	synCtx, cancel := p.stageCtx(ctx)
	synth, err := p.synthesizer.Synthesize(synCtx, translated)
	cancel()
	if err != nil {
		return nil, p.fail(r, err)
	}
	if synth == nil || synth.AudioBase64 == "" {
		return nil, p.fail(r, ErrEmptySynthesis)
	}

	samples, err := wav.DecodeBase64PCM(synth.AudioBase64)
	if err != nil {
		return nil, p.fail(r, err)
	}
	rate := synth.SampleRate
	if rate == 0 {
		rate = p.cfg.SynthesisSampleRate
	}
	encoded := wav.Encode(samples, uint32(rate))
	p.observe(StateSynthesizing, start)

	r.transition(StateComplete)
	if p.metrics != nil {
		p.metrics.RunsCompleted.Inc()
	}
	r.logger.Info("run complete", "samples", len(samples), "sample_rate", rate,
		"output_bytes", len(encoded))

	return &Result{
		RunID:       r.id,
		Transcript:  transcript,
		Translation: translated,
		Audio:       encoded,
		SampleRate:  rate,
	}, nil
}
