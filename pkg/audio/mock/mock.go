// Package mock provides in-memory Recorder and Player implementations for
// tests. Set the exported fields to control return values; inspect the call
// counters afterwards.
package mock

import (
	"context"
	"errors"
	"sync"
)

// Recorder is a mock audio.Recorder. Set WAV to the buffer Stop should
// return, or StartErr/StopErr to force failures.
type Recorder struct {
	WAV      []byte
	StartErr error
	StopErr  error

	mu        sync.Mutex
	recording bool

	// Starts and Stops count successful Start and Stop calls.
	Starts int
	Stops  int
}

func (r *Recorder) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return r.StartErr
	}
	if r.recording {
		return errors.New("mock recorder: already recording")
	}
	r.recording = true
	r.Starts++
	return nil
}

func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, errors.New("mock recorder: not recording")
	}
	r.recording = false
	r.Stops++
	if r.StopErr != nil {
		return nil, r.StopErr
	}
	return r.WAV, nil
}

// Player is a mock audio.Player that records every buffer played.
type Player struct {
	PlayErr error

	mu     sync.Mutex
	played [][]byte
}

func (p *Player) Play(_ context.Context, pcm []byte) error {
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.played = append(p.played, cp)
	return nil
}

// Played returns a copy of all buffers played so far.
func (p *Player) Played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.played))
	copy(out, p.played)
	return out
}
