// Package audio defines the microphone and speaker boundaries of the copilot
// and the WAV/PCM helpers shared by providers. All audio inside the pipeline
// is 16-bit signed little-endian PCM; the canonical rate is 16 kHz mono,
// which is what the transcription providers expect.
package audio

import "context"

const (
	// SampleRate is the canonical pipeline sample rate in Hz.
	SampleRate = 16000

	// Channels is the canonical channel count (mono).
	Channels = 1

	// BitsPerSample is fixed at 16 for signed little-endian PCM.
	BitsPerSample = 16
)

// Recorder captures microphone audio between Start and Stop. A Recorder
// handles one recording at a time; Start while a recording is active is an
// error. Stop returns the captured audio as a WAV-encoded buffer.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}

// Player plays a raw PCM buffer (s16le, [SampleRate] Hz, mono) to the default
// output device. Play blocks until playback finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}
