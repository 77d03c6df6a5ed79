// Package speech defines the collaborator contracts the pipeline drives:
// recognition, translation, and synthesis.
//
// Implementations live in subpackages (google, whisper, piper). Clients are
// constructed once at startup, injected into the pipeline, and must be safe
// for concurrent use — the pipeline runs many requests against the same
// client instances.
package speech

import "context"

// RecognizeConfig describes the audio handed to a recognizer.
type RecognizeConfig struct {
	// Encoding is the audio encoding tag (e.g. "LINEAR16").
	Encoding string

	// SampleRateHertz matches the conditioned audio's sample rate.
	SampleRateHertz int

	// Language is the BCP-47 tag of the spoken input.
	Language string

	// Hints is the fixed phrase set used to bias recognition toward
	// domain vocabulary.
	Hints []string
}

// Recognizer converts conditioned audio into transcript text.
type Recognizer interface {
	// Recognize returns the transcript for the given audio. An empty
	// transcript is not an error here; the pipeline decides how to
	// treat it.
	Recognize(ctx context.Context, audio []byte, cfg RecognizeConfig) (string, error)

	// Close releases any resources held by the recognizer.
	Close() error
}

// Translator converts text between languages.
type Translator interface {
	// Translate returns text translated from sourceLang to targetLang,
	// both BCP-47 tags.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)

	// Close releases any resources held by the translator.
	Close() error
}

// Synthesis is the result of a synthesis call.
type Synthesis struct {
	// AudioBase64 is raw headerless 16-bit LE PCM, base64-encoded.
	AudioBase64 string

	// SampleRate is the PCM sample rate in Hz. Zero means the backend
	// did not report one and the configured default applies.
	SampleRate int
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	// Synthesize generates PCM audio for the given text in the voice
	// the backend was configured with.
	Synthesize(ctx context.Context, text string) (*Synthesis, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}
