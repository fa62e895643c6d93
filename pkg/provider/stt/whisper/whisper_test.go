package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/perchfield/sidequest/pkg/audio"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty serverURL")
	}
	p, err := New("http://localhost:8080/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.serverURL != "http://localhost:8080" {
		t.Errorf("serverURL = %q, trailing slash not stripped", p.serverURL)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	wav := audio.EncodeWAV(make([]byte, 3200), audio.SampleRate, audio.Channels)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %s, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q, want %q", got, "de")
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "  wo ist der boss  "})
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Transcribe(context.Background(), wav)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "wo ist der boss" {
		t.Errorf("Transcribe = %q, want trimmed text", got)
	}
}

func TestTranscribeEmptyBuffer(t *testing.T) {
	t.Parallel()

	p, err := New("http://localhost:1") // never dialled
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Transcribe(nil): %v", err)
	}
	if got != "" {
		t.Errorf("Transcribe(nil) = %q, want empty", got)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	wav := audio.EncodeWAV(make([]byte, 320), audio.SampleRate, audio.Channels)
	if _, err := p.Transcribe(context.Background(), wav); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestPCMToFloat32Mono(t *testing.T) {
	t.Parallel()

	// Two stereo frames: (16384, -16384), (32767, 32767).
	pcm := []byte{
		0x00, 0x40, 0x00, 0xc0,
		0xff, 0x7f, 0xff, 0x7f,
	}
	mono := pcmToFloat32Mono(pcm, 2)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if mono[0] != 0 {
		t.Errorf("mono[0] = %f, want 0 (channels cancel)", mono[0])
	}
	if mono[1] < 0.99 {
		t.Errorf("mono[1] = %f, want ~1.0", mono[1])
	}
}
