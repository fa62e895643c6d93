// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"
)

// Provider is a mock stt.Provider. Set Text to the transcript Transcribe
// should return, or Err to force a failure.
type Provider struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls [][]byte
}

func (p *Provider) Transcribe(_ context.Context, wav []byte) (string, error) {
	p.mu.Lock()
	cp := make([]byte, len(wav))
	copy(cp, wav)
	p.calls = append(p.calls, cp)
	p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// Calls returns the WAV buffers passed to Transcribe so far.
func (p *Provider) Calls() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.calls))
	copy(out, p.calls)
	return out
}
