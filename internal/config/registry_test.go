package config

import (
	"errors"
	"testing"

	"github.com/perchfield/sidequest/pkg/provider/llm"
	llmmock "github.com/perchfield/sidequest/pkg/provider/llm/mock"
	"github.com/perchfield/sidequest/pkg/provider/stt"
	sttmock "github.com/perchfield/sidequest/pkg/provider/stt/mock"
)

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterLLM("mock", func(entry ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{Content: entry.Model}, nil
	})
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})

	p, err := r.CreateLLM(ProviderEntry{Name: "mock", Model: "answer"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p == nil {
		t.Fatal("CreateLLM returned nil provider")
	}

	if _, err := r.CreateSTT(ProviderEntry{Name: "mock"}); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
}

func TestRegistryNotRegistered(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.CreateTTS(ProviderEntry{Name: "ghost"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterLLM("mock", func(ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{Content: "first"}, nil
	})
	r.RegisterLLM("mock", func(ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{Content: "second"}, nil
	})

	p, err := r.CreateLLM(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if got := p.(*llmmock.Provider).Content; got != "second" {
		t.Errorf("factory = %q, want the later registration", got)
	}
}
