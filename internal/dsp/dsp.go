// Package dsp normalizes arbitrary input audio into the canonical
// recognition format by driving SoX over run-scoped scratch files.
//
// The filter chain is a fixed design decision, not a configurable pipeline:
// band-limiting runs before noise reduction, and loudness normalization runs
// last, because downstream recognition accuracy depends on that order.
package dsp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/nadzzz/crosstalk/internal/config"
	"github.com/nadzzz/crosstalk/internal/scratch"
	"github.com/nadzzz/crosstalk/internal/wav"
)

const (
	// noiseProfileSeconds is the leading slice of the input sampled to
	// build the noise profile consumed by noisered.
	noiseProfileSeconds = "0.5"

	// noiseReductionAmount is how aggressively noisered attenuates the
	// profiled noise floor.
	noiseReductionAmount = "0.21"
)

// ErrInputMissing reports that the raw scratch file vanished before the
// engine could read it.
var ErrInputMissing = errors.New("dsp: input resource not found")

// Error is an engine failure carrying SoX's diagnostic output.
type Error struct {
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("dsp engine: %v", e.Err)
	}
	return fmt.Sprintf("dsp engine: %v: %s", e.Err, e.Output)
}

func (e *Error) Unwrap() error { return e.Err }

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner executes commands via os/exec and returns combined stderr output.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// Conditioner runs the fixed filter chain over raw audio bytes.
type Conditioner struct {
	soxPath    string
	sampleRate int
	store      *scratch.Store
	runner     commandRunner
}

// New creates a Conditioner backed by the given scratch store.
func New(cfg config.DSPConfig, store *scratch.Store) *Conditioner {
	return &Conditioner{
		soxPath:    cfg.SoxPath,
		sampleRate: cfg.SampleRate,
		store:      store,
		runner:     execRunner{},
	}
}

// Condition transforms raw audio bytes into mono recognition-rate audio,
// band-limited, denoised, silence-trimmed, and loudness-normalized. SoX runs
// twice: a profiling pass builds a noise profile from the leading slice of
// the input, then the main pass applies the filter chain with that profile.
// Every scratch file acquired is released before Condition returns, on
// success and on every failure path.
func (c *Conditioner) Condition(ctx context.Context, runID string, raw []byte) ([]byte, error) {
	in := c.store.Acquire(runID, "raw")
	out := c.store.Acquire(runID, "cleaned")
	profile := c.store.Acquire(runID, "noiseprof")
	defer in.Release()
	defer out.Release()
	defer profile.Release()

	if err := in.Write(raw); err != nil {
		return nil, err
	}
	if !in.Exists() {
		return nil, ErrInputMissing
	}

	profileArgs := []string{in.Path(), "-n", "trim", "0", noiseProfileSeconds, "noiseprof", profile.Path()}
	slog.Debug("profiling noise floor", "run_id", runID, "bin", c.soxPath, "args", profileArgs)

	diag, err := c.runner.Run(ctx, c.soxPath, profileArgs...)
	if err != nil {
		return nil, &Error{Output: diag, Err: err}
	}

	args := c.buildArgs(in.Path(), out.Path(), profile.Path())
	slog.Debug("running dsp engine", "run_id", runID, "bin", c.soxPath, "args", args)

	diag, err = c.runner.Run(ctx, c.soxPath, args...)
	if err != nil {
		return nil, &Error{Output: diag, Err: err}
	}

	cleaned, err := out.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Output: diag, Err: fmt.Errorf("engine produced no output: %w", err)}
		}
		return nil, err
	}

	info, err := wav.Probe(cleaned)
	if err != nil {
		return nil, &Error{Output: diag, Err: err}
	}
	if info.SampleRate != c.sampleRate || info.Channels != 1 {
		return nil, &Error{
			Output: diag,
			Err:    fmt.Errorf("engine output is %d Hz / %d ch, want %d Hz mono", info.SampleRate, info.Channels, c.sampleRate),
		}
	}

	slog.Debug("conditioning complete", "run_id", runID,
		"bytes_in", len(raw), "bytes_out", len(cleaned), "duration_s", info.Duration())
	return cleaned, nil
}

// buildArgs assembles the main SoX invocation: input, output format
// constraints (mono at the recognition rate), output path, then the fixed
// filter chain — high-pass at 80 Hz, low-pass at 8 kHz, spectral noise
// reduction against the profiled floor, silence removal below -50 dB,
// loudness normalization.
func (c *Conditioner) buildArgs(inPath, outPath, profilePath string) []string {
	return []string{
		inPath,
		"-r", strconv.Itoa(c.sampleRate),
		"-c", "1",
		outPath,
		"highpass", "80",
		"lowpass", "8000",
		"noisered", profilePath, noiseReductionAmount,
		"silence", "1", "0.1", "-50d", "-1", "0.5", "-50d",
		"norm",
	}
}
