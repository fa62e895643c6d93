// Package stage defines the error taxonomy shared by the voice pipeline and
// the game-state tracker. Every failure crossing a component boundary is
// tagged with the pipeline stage it occurred in, so callers can branch on the
// stage without inspecting provider-specific error strings.
package stage

import (
	"errors"
	"fmt"
)

// Kind identifies the pipeline stage an error originated from.
type Kind string

const (
	KindCapture       Kind = "capture"
	KindTranscription Kind = "transcription"
	KindRetrieval     Kind = "retrieval"
	KindGeneration    Kind = "generation"
	KindSynthesis     Kind = "synthesis"
	KindPlayback      Kind = "playback"
)

// ErrMalformedOutput marks a generation result that could not be parsed into
// the expected structure. Wrap it with [NewError] under [KindGeneration].
var ErrMalformedOutput = errors.New("stage: malformed model output")

// Error tags an underlying cause with the stage it occurred in.
type Error struct {
	Kind Kind
	Err  error
}

// NewError wraps err with the given stage kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf wraps a formatted error with the given stage kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a stage error of the same kind. A stage error
// with an unset kind matches any stage error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// KindOf returns the stage kind of err, or the empty kind when err carries no
// stage tag.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
