package coqui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/perchfield/sidequest/pkg/audio"
)

func TestSynthesize(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 640)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	wav := audio.EncodeWAV(pcm, audio.SampleRate, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("path = %s, want /api/tts", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("text") != "take the left path" {
			t.Errorf("text = %q", q.Get("text"))
		}
		if q.Get("language_id") != "en" {
			t.Errorf("language_id = %q, want en", q.Get("language_id"))
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Synthesize(context.Background(), "take the left path")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got) != string(pcm) {
		t.Error("PCM payload mismatch")
	}
}

func TestSynthesizeResamples(t *testing.T) {
	t.Parallel()

	// 22050 Hz source should be resampled down to the pipeline rate.
	pcm := make([]byte, 22050*2/10) // 100 ms
	wav := audio.EncodeWAV(pcm, 22050, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(wav)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	got, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	wantSamples := int(int64(len(pcm)/2) * audio.SampleRate / 22050)
	if len(got)/2 != wantSamples {
		t.Errorf("resampled samples = %d, want %d", len(got)/2, wantSamples)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	p, _ := New("http://localhost:1")
	got, err := p.Synthesize(context.Background(), "")
	if err != nil {
		t.Fatalf("Synthesize(\"\"): %v", err)
	}
	if len(got) != 0 {
		t.Error("expected empty buffer for empty text")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if _, err := p.Synthesize(context.Background(), "hi"); err == nil {
		t.Error("expected error for 503 response")
	}
}
