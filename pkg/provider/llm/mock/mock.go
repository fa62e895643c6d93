// Package mock provides a test double for the llm.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/perchfield/sidequest/pkg/provider/llm"
)

// Provider is a mock llm.Provider. Set Content to the reply Complete should
// return, or Err to force a failure. Responses may be set to return a
// different reply per call (cycled, last one repeats).
type Provider struct {
	Content   string
	Responses []string
	Err       error

	// Vision controls the Capabilities report. Defaults to vision-capable.
	NoVision bool

	mu       sync.Mutex
	requests []llm.Request
}

func (p *Provider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if p.NoVision && len(req.Image) > 0 {
		return nil, llm.ErrVisionUnsupported
	}

	content := p.Content
	if len(p.Responses) > 0 {
		if n >= len(p.Responses) {
			n = len(p.Responses) - 1
		}
		content = p.Responses[n]
	}
	return &llm.Response{Content: content}, nil
}

func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportsVision:  !p.NoVision,
		ContextWindow:   128_000,
		MaxOutputTokens: 4_096,
	}
}

// Requests returns every request passed to Complete so far.
func (p *Provider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// CompleteCalls returns the number of Complete invocations.
func (p *Provider) CompleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}
