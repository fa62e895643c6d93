package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "voice"); err == nil {
		t.Error("expected error for empty apiKey")
	}
	if _, err := New("key", ""); err == nil {
		t.Error("expected error for empty voiceID")
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()

	p, err := New("key", "voice")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Synthesize(context.Background(), "")
	if err != nil {
		t.Fatalf("Synthesize(\"\"): %v", err)
	}
	if len(got) != 0 {
		t.Error("expected no audio for empty text")
	}
}

func TestSynthesizeAgainstLocalServer(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		// BOI must carry the API key and output format.
		_, msg, err := conn.Read(ctx)
		if err != nil {
			t.Errorf("read BOI: %v", err)
			return
		}
		var boi boiMessage
		if err := json.Unmarshal(msg, &boi); err != nil {
			t.Errorf("unmarshal BOI: %v", err)
			return
		}
		if boi.XiAPIKey != "key-abc" {
			t.Errorf("xi_api_key = %q", boi.XiAPIKey)
		}
		if boi.OutputFormat != "pcm_16000" {
			t.Errorf("output_format = %q", boi.OutputFormat)
		}

		// Text fragment, then flush.
		_, msg, err = conn.Read(ctx)
		if err != nil {
			t.Errorf("read text: %v", err)
			return
		}
		var tm textMessage
		json.Unmarshal(msg, &tm)
		if !strings.Contains(tm.Text, "behind the waterfall") {
			t.Errorf("text = %q", tm.Text)
		}
		if _, _, err := conn.Read(ctx); err != nil { // flush
			t.Errorf("read flush: %v", err)
			return
		}

		// Two audio chunks, the second marked final.
		half := len(pcm) / 2
		writeJSON(ctx, conn, audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm[:half])})
		writeJSON(ctx, conn, audioResponse{Audio: base64.StdEncoding.EncodeToString(pcm[half:]), IsFinal: true})
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, err := New("key-abc", "voice-1", WithEndpoint(wsURL+"/%s/%s"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Synthesize(context.Background(), "the chest is behind the waterfall")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}
