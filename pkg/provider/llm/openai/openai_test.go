package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/perchfield/sidequest/pkg/provider/llm"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("key", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model  string
		vision bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-mini", true},
		{"gpt-4-turbo", true},
		{"gpt-4", false},
		{"gpt-3.5-turbo", false},
		{"o1", true},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			got := modelCapabilities(tc.model)
			if got.SupportsVision != tc.vision {
				t.Errorf("SupportsVision = %v, want %v", got.SupportsVision, tc.vision)
			}
			if got.ContextWindow == 0 || got.MaxOutputTokens == 0 {
				t.Error("window and output limits must be non-zero")
			}
		})
	}
}

func TestCompleteAgainstLocalServer(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"choices": [{"message": {"role": "assistant", "content": "Use fire arrows on the vines."}}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 9, "total_tokens": 51}
		}`)
	}))
	defer srv.Close()

	p, err := New("key", "gpt-4o", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.Complete(context.Background(), llm.Request{
		System: "You are a concise gaming coach.",
		Messages: []llm.Message{
			{Role: "user", Content: "How do I open this door?"},
		},
		Image:       []byte{0x89, 0x50, 0x4e, 0x47},
		Temperature: 0.4,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Use fire arrows on the vines." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 51 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}

	if captured["model"] != "gpt-4o" {
		t.Errorf("model = %v", captured["model"])
	}
	msgs, ok := captured["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
	// The user message must carry text plus an image data URL.
	user := msgs[1].(map[string]any)
	parts, ok := user["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("user content = %v", user["content"])
	}
	img := parts[1].(map[string]any)
	url := img["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q", url)
	}
}

func TestCompleteImageOnTextOnlyModel(t *testing.T) {
	t.Parallel()

	p, err := New("key", "gpt-3.5-turbo")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "what is this?"}},
		Image:    []byte{1, 2, 3},
	})
	if !errors.Is(err, llm.ErrVisionUnsupported) {
		t.Errorf("err = %v, want ErrVisionUnsupported", err)
	}
}
