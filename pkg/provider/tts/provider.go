// Package tts defines the synthesis boundary. The copilot speaks one complete
// answer per turn, so the contract is batch: text in, one PCM buffer out
// (s16le, 16 kHz, mono — the pipeline's canonical format).
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any text-to-speech backend. The voice is
// part of provider configuration, not the call: the copilot has exactly one
// speaking persona.
type Provider interface {
	// Synthesize converts text to raw PCM audio. An empty text returns an
	// empty buffer and a nil error.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
