package pipeline

// State is a pipeline run's position in the stage sequence.
type State string

// Run states. Idle is the only initial state; Complete and Failed are
// terminal, and Failed is reachable from every non-terminal state.
const (
	StateIdle         State = "idle"
	StateConditioning State = "conditioning"
	StateRecognizing  State = "recognizing"
	StateTranslating  State = "translating"
	StateSynthesizing State = "synthesizing"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)
