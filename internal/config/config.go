// Package config handles loading and validating the crosstalk configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the crosstalk daemon.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DSP      DSPConfig      `mapstructure:"dsp"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port         int   `mapstructure:"port"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// DSPConfig configures the external signal-processing engine.
type DSPConfig struct {
	// SoxPath is the SoX binary invoked for the conditioning filter chain.
	SoxPath string `mapstructure:"sox_path"`

	// ScratchDir is where run-scoped working files live. Empty means the
	// system temp directory.
	ScratchDir string `mapstructure:"scratch_dir"`

	// SampleRate is the canonical recognition sample rate in Hz.
	SampleRate int `mapstructure:"sample_rate"`
}

// SpeechConfig selects and configures the collaborator backends.
type SpeechConfig struct {
	Recognizer  string        `mapstructure:"recognizer"`  // "google" or "whisper"
	Synthesizer string        `mapstructure:"synthesizer"` // "google" or "piper"
	Google      GoogleConfig  `mapstructure:"google"`
	Whisper     WhisperConfig `mapstructure:"whisper"`
	Piper       PiperConfig   `mapstructure:"piper"`
}

// GoogleConfig holds Google Cloud speech settings. Authentication uses
// Application Default Credentials; no key material lives in the config.
type GoogleConfig struct {
	// Voice overrides the synthesis voice name (e.g. "es-ES-Neural2-A").
	// Empty selects the service default for the target language.
	Voice string `mapstructure:"voice"`
}

// WhisperConfig holds settings for an OpenAI-compatible transcription endpoint
// (api.openai.com or a self-hosted whisper server).
type WhisperConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol, TCP).
type PiperConfig struct {
	Endpoint string `mapstructure:"endpoint"` // host:port of the Wyoming server
	Voice    string `mapstructure:"voice"`    // Piper voice model name
}

// PipelineConfig holds the fixed per-run pipeline parameters.
type PipelineConfig struct {
	// SourceLanguage is the BCP-47 tag of the spoken input (e.g. "en-US").
	SourceLanguage string `mapstructure:"source_language"`

	// TargetLanguage is the BCP-47 tag of the synthesized output.
	TargetLanguage string `mapstructure:"target_language"`

	// VocabularyHints is the fixed phrase set used to bias recognition.
	VocabularyHints []string `mapstructure:"vocabulary_hints"`

	// StageTimeout bounds each collaborator call and the engine invocation.
	// Zero disables the per-stage deadline.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`

	// SynthesisSampleRate is the sample rate requested from synthesis and
	// used to encode the final container when the backend does not report
	// its own rate.
	SynthesisSampleRate int `mapstructure:"synthesis_sample_rate"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./crosstalk.yaml, ./configs/crosstalk.yaml,
// /etc/crosstalk/crosstalk.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 25<<20)
	v.SetDefault("dsp.sox_path", "sox")
	v.SetDefault("dsp.scratch_dir", "")
	v.SetDefault("dsp.sample_rate", 16000)
	v.SetDefault("speech.recognizer", "google")
	v.SetDefault("speech.synthesizer", "google")
	v.SetDefault("speech.google.voice", "")
	v.SetDefault("speech.whisper.endpoint", "https://api.openai.com/v1/audio/transcriptions")
	v.SetDefault("speech.whisper.model", "whisper-1")
	v.SetDefault("speech.piper.endpoint", "localhost:10200")
	v.SetDefault("speech.piper.voice", "")
	v.SetDefault("pipeline.source_language", "en-US")
	v.SetDefault("pipeline.target_language", "es-ES")
	v.SetDefault("pipeline.vocabulary_hints", []string{})
	v.SetDefault("pipeline.stage_timeout", "60s")
	v.SetDefault("pipeline.synthesis_sample_rate", 24000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("crosstalk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/crosstalk")
	}

	// Environment variables: CROSSTALK_SERVER_PORT, CROSSTALK_SPEECH_RECOGNIZER, etc.
	v.SetEnvPrefix("CROSSTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional — env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Speech.Whisper.APIKey = resolveEnvRef(cfg.Speech.Whisper.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate rejects configurations the pipeline cannot run with.
func (c *Config) validate() error {
	switch c.Speech.Recognizer {
	case "google", "whisper":
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.Speech.Recognizer)
	}
	switch c.Speech.Synthesizer {
	case "google", "piper":
	default:
		return fmt.Errorf("unknown synthesizer backend %q", c.Speech.Synthesizer)
	}
	if c.Pipeline.SourceLanguage == "" || c.Pipeline.TargetLanguage == "" {
		return fmt.Errorf("pipeline.source_language and pipeline.target_language are required")
	}
	if c.DSP.SampleRate <= 0 {
		return fmt.Errorf("dsp.sample_rate must be positive, got %d", c.DSP.SampleRate)
	}
	if c.Pipeline.SynthesisSampleRate <= 0 {
		return fmt.Errorf("pipeline.synthesis_sample_rate must be positive, got %d", c.Pipeline.SynthesisSampleRate)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
