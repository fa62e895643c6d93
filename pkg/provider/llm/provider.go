// Package llm defines the generation boundary. A provider receives a fully
// assembled context bundle (system prompt, conversation history, the
// player's question, and optionally a screenshot) and returns the model's
// text response. The copilot uses the same boundary for coaching answers and
// for the tracker's structured state analysis.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"
	"errors"
)

// ErrVisionUnsupported is returned by Complete when the request carries an
// image but the configured model cannot accept one.
var ErrVisionUnsupported = errors.New("llm: model does not support image input")

// Message is one entry of the conversation history.
type Message struct {
	// Role is "user" or "assistant". The system prompt travels separately
	// in [Request.System].
	Role    string
	Content string
}

// Request carries everything the model needs to produce a response. Messages
// must be non-empty and the last message drives the response.
type Request struct {
	// System is an optional high-priority instruction injected before the
	// conversation history.
	System string

	// Messages is the ordered conversation history.
	Messages []Message

	// Image is an optional encoded screenshot attached to the final user
	// message. Providers without vision support must return
	// [ErrVisionUnsupported] when it is set.
	Image []byte

	// ImageMIME is the MIME type of Image. Empty defaults to "image/png".
	ImageMIME string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means the
	// provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider default.
	MaxTokens int
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's reply.
type Response struct {
	Content string
	Usage   Usage
}

// Capabilities describes what a provider's underlying model supports. The
// result is constant for the lifetime of the Provider instance.
type Capabilities struct {
	SupportsVision  bool
	ContextWindow   int
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() Capabilities
}
