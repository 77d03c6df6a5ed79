package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel causes for the pipeline's own validations. Collaborator and
// engine failures carry their own error types underneath a StageError.
var (
	// ErrEmptyInput reports a missing or empty upload or text body.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyTranscript reports that recognition produced no text.
	ErrEmptyTranscript = errors.New("recognizer returned an empty transcript")

	// ErrEmptySynthesis reports that synthesis produced no audio payload.
	ErrEmptySynthesis = errors.New("synthesizer returned no audio")
)

// StageError tags a failure with the stage that produced it. Exactly one
// StageError is reported per failed run; the underlying cause is preserved
// for errors.Is / errors.As.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
