// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"
)

// Provider is a mock tts.Provider. Set PCM to the buffer Synthesize should
// return, or Err to force a failure.
type Provider struct {
	PCM []byte
	Err error

	mu    sync.Mutex
	texts []string
}

func (p *Provider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.PCM, nil
}

// Texts returns every text passed to Synthesize so far.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
