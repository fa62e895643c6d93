package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech-to-text" {
			t.Errorf("path = %s, want /v1/speech-to-text", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-123" {
			t.Errorf("xi-api-key = %q, want %q", got, "key-123")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("model_id = %q, want scribe_v1", got)
		}
		json.NewEncoder(w).Encode(sttResponse{Text: "what drops from this boss"})
	}))
	defer srv.Close()

	p, err := New("key-123", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Transcribe(context.Background(), []byte("RIFFfake"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "what drops from this boss" {
		t.Errorf("Transcribe = %q", got)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty apiKey")
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad-key", WithBaseURL(srv.URL))
	if _, err := p.Transcribe(context.Background(), []byte("RIFFfake")); err == nil {
		t.Error("expected error for 401 response")
	}
}
