// Package turn implements the voice turn orchestrator: the push-to-talk
// state machine that records a question, transcribes it, retrieves matching
// game knowledge, generates a spoken answer, and plays it back.
//
// At most one turn is ever in flight. A press while any turn is active is
// dropped, never queued. The game-state snapshot and the screenshot a turn
// consumes are the ones visible at press time; the tracker may publish newer
// snapshots mid-turn without affecting the in-flight turn.
package turn

import "time"

// State is a phase of the voice turn state machine.
type State int32

const (
	// StateIdle means no turn is in flight and a press starts one.
	StateIdle State = iota

	// StateRecording means the talk key is held and the microphone is open.
	StateRecording

	// StateTranscribing means the recorded audio is at the STT provider.
	StateTranscribing

	// StateRetrieving means the knowledge store is being queried.
	StateRetrieving

	// StateGenerating means the answer is at the language model.
	StateGenerating

	// StateSynthesizing means the answer text is at the TTS provider.
	StateSynthesizing

	// StatePlaying means answer audio is going to the speaker.
	StatePlaying

	// StateFailed is entered when a stage fails; the orchestrator speaks a
	// short fallback line and returns to StateIdle.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateRetrieving:
		return "retrieving"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exchange is one completed question/answer pair kept in the in-process
// conversation history.
type Exchange struct {
	Question string
	Answer   string
	At       time.Time
}

// Timeouts bounds the network-bound stages of a turn. Playback is bounded by
// the answer audio length and carries no timeout of its own. A zero field
// means no timeout for that stage.
type Timeouts struct {
	Capture    time.Duration
	Transcribe time.Duration
	Retrieve   time.Duration
	Generate   time.Duration
	Synthesize time.Duration
}

// DefaultTimeouts returns the stage timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Capture:    2 * time.Second,
		Transcribe: 15 * time.Second,
		Retrieve:   5 * time.Second,
		Generate:   30 * time.Second,
		Synthesize: 20 * time.Second,
	}
}
