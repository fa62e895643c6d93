package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCapture(t *testing.T) {
	t.Parallel()

	img := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/capture" {
			t.Errorf("path = %s, want /capture", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if string(got) != string(img) {
		t.Errorf("Capture = %x, want %x", got, img)
	}
}

func TestCaptureErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty serverURL", func(t *testing.T) {
		t.Parallel()
		if _, err := New(""); err == nil {
			t.Error("expected error for empty serverURL")
		}
	})

	t.Run("server error status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no display", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p, _ := New(srv.URL)
		if _, err := p.Capture(context.Background()); err == nil {
			t.Error("expected error for 503 response")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p, _ := New(srv.URL)
		if _, err := p.Capture(context.Background()); err == nil {
			t.Error("expected error for empty image")
		}
	})

	t.Run("display parameter forwarded", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("display"); got != "1" {
				t.Errorf("display = %q, want %q", got, "1")
			}
			w.Write([]byte{1})
		}))
		defer srv.Close()

		p, _ := New(srv.URL, WithDisplay("1"))
		if _, err := p.Capture(context.Background()); err != nil {
			t.Errorf("Capture: %v", err)
		}
	})
}
