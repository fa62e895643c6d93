// Package mock provides an in-memory capture.Provider for tests.
package mock

import (
	"context"
	"sync"
)

// Provider is a mock capture provider. Set Image to the bytes Capture should
// return, or Err to force a failure.
type Provider struct {
	Image []byte
	Err   error

	mu    sync.Mutex
	calls int
}

func (p *Provider) Capture(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Image, nil
}

// Calls returns the number of Capture invocations.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
