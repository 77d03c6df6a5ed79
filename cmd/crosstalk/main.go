// Crosstalk is a speech-to-speech translation daemon: it conditions incoming
// audio, recognizes it in the source language, translates the transcript, and
// synthesizes spoken output in the target language.
//
// Usage:
//
//	crosstalk [flags]
//	crosstalk --config /path/to/crosstalk.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadzzz/crosstalk/internal/config"
	"github.com/nadzzz/crosstalk/internal/dsp"
	"github.com/nadzzz/crosstalk/internal/metrics"
	"github.com/nadzzz/crosstalk/internal/pipeline"
	"github.com/nadzzz/crosstalk/internal/scratch"
	"github.com/nadzzz/crosstalk/internal/server"
	"github.com/nadzzz/crosstalk/internal/speech"
	googlespeech "github.com/nadzzz/crosstalk/internal/speech/google"
	"github.com/nadzzz/crosstalk/internal/speech/piper"
	"github.com/nadzzz/crosstalk/internal/speech/whisper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/crosstalk.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("crosstalk %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("crosstalk starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Signal conditioning stage.
	store := scratch.NewStore(cfg.DSP.ScratchDir)
	conditioner := dsp.New(cfg.DSP, store)

	// Initialize the recognizer backend.
	var recognizer speech.Recognizer
	switch cfg.Speech.Recognizer {
	case "google":
		recognizer, err = googlespeech.NewRecognizer(ctx)
		if err != nil {
			slog.Error("failed to create Google recognizer", "error", err)
			os.Exit(1)
		}
		slog.Info("using Google Cloud recognition",
			"language", cfg.Pipeline.SourceLanguage)
	case "whisper":
		recognizer = whisper.New(cfg.Speech.Whisper)
		slog.Info("using whisper recognition",
			"endpoint", cfg.Speech.Whisper.Endpoint,
			"model", cfg.Speech.Whisper.Model)
	default:
		slog.Error("unknown recognizer backend", "backend", cfg.Speech.Recognizer)
		os.Exit(1)
	}
	defer recognizer.Close()

	// Translation always goes through Google Cloud Translation.
	translator, err := googlespeech.NewTranslator(ctx)
	if err != nil {
		slog.Error("failed to create translator", "error", err)
		os.Exit(1)
	}
	defer translator.Close()

	// Initialize the synthesizer backend.
	var synthesizer speech.Synthesizer
	switch cfg.Speech.Synthesizer {
	case "google":
		synthesizer, err = googlespeech.NewSynthesizer(ctx,
			cfg.Pipeline.TargetLanguage, cfg.Speech.Google.Voice,
			cfg.Pipeline.SynthesisSampleRate)
		if err != nil {
			slog.Error("failed to create Google synthesizer", "error", err)
			os.Exit(1)
		}
		slog.Info("using Google Cloud synthesis",
			"language", cfg.Pipeline.TargetLanguage,
			"voice", cfg.Speech.Google.Voice)
	case "piper":
		synthesizer = piper.New(cfg.Speech.Piper, cfg.Pipeline.TargetLanguage)
		slog.Info("using Piper synthesis",
			"endpoint", cfg.Speech.Piper.Endpoint,
			"voice", cfg.Speech.Piper.Voice)
	default:
		slog.Error("unknown synthesizer backend", "backend", cfg.Speech.Synthesizer)
		os.Exit(1)
	}
	defer synthesizer.Close()

	// Assemble the pipeline and the HTTP boundary.
	m := metrics.New()
	pipe := pipeline.New(conditioner, recognizer, translator, synthesizer, cfg.Pipeline, m)
	srv := server.New(cfg.Server, pipe, m)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			slog.Error("http server failed", "error", err)
			cancel()
		}
	}()

	srv.SetReady(true)
	slog.Info("crosstalk ready",
		"port", cfg.Server.Port,
		"source_language", cfg.Pipeline.SourceLanguage,
		"target_language", cfg.Pipeline.TargetLanguage)

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	if err := srv.Close(); err != nil {
		slog.Error("server close error", "error", err)
	}
	slog.Info("crosstalk stopped")
}
