package anyllm

import (
	"context"
	"errors"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/perchfield/sidequest/pkg/provider/llm"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "llama3.1"); err == nil {
		t.Error("expected error for empty providerName")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("no-such-provider", "llama3.1"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestCompleteRejectsImages(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "llama3.1"}
	_, err := p.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "what am I looking at?"}},
		Image:    []byte{1, 2, 3},
	})
	if !errors.Is(err, llm.ErrVisionUnsupported) {
		t.Errorf("err = %v, want ErrVisionUnsupported", err)
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "llama3.1"}
	params := p.buildParams(llm.Request{
		System: "coach",
		Messages: []llm.Message{
			{Role: "user", Content: "where is the blacksmith?"},
			{Role: "assistant", Content: "In the lower district."},
			{Role: "user", Content: "and the armorer?"},
		},
		Temperature: 0.7,
		MaxTokens:   128,
	})

	if params.Model != "llama3.1" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Error("temperature not forwarded")
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Error("max tokens not forwarded")
	}
}

func TestCapabilitiesTextOnly(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "claude-sonnet-4"}
	caps := p.Capabilities()
	if caps.SupportsVision {
		t.Error("vision must be reported unsupported")
	}
	if caps.ContextWindow != 200_000 {
		t.Errorf("context window = %d", caps.ContextWindow)
	}
}
