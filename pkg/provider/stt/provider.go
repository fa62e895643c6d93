// Package stt defines the transcription boundary. Unlike a live-conversation
// system, push-to-talk produces one bounded audio buffer per turn, so the
// contract is batch: the whole recording goes in, one transcript comes out.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts a complete WAV-encoded recording to text. An empty
	// string with a nil error is a valid result and means no speech was
	// recognised.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}
