package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/perchfield/sidequest/internal/config"
	"github.com/perchfield/sidequest/internal/health"
	"github.com/perchfield/sidequest/internal/knowledge"
	knowledgemock "github.com/perchfield/sidequest/internal/knowledge/mock"
	audiomock "github.com/perchfield/sidequest/pkg/audio/mock"
	capturemock "github.com/perchfield/sidequest/pkg/provider/capture/mock"
	embedmock "github.com/perchfield/sidequest/pkg/provider/embeddings/mock"
	llmmock "github.com/perchfield/sidequest/pkg/provider/llm/mock"
	sttmock "github.com/perchfield/sidequest/pkg/provider/stt/mock"
	ttsmock "github.com/perchfield/sidequest/pkg/provider/tts/mock"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Game.Title = "Eldenfall"
	cfg.Cache.TTL = config.Duration(5 * time.Minute)
	cfg.Knowledge.TopK = 2
	return cfg
}

func testProviders() *Providers {
	return &Providers{
		LLM: &llmmock.Provider{Content: "Head east past the mill."},
		STT: &sttmock.Provider{Text: "where do I go next"},
		TTS: &ttsmock.Provider{},
	}
}

// run executes the app against a scripted key sequence and waits for exit.
func run(t *testing.T, a *App) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not exit")
	}
}

func TestAppEndToEndTurn(t *testing.T) {
	t.Parallel()

	player := &audiomock.Player{}
	providers := testProviders()

	a, err := New(context.Background(), testConfig(), providers,
		WithRecorder(&audiomock.Recorder{WAV: []byte("wav")}),
		WithPlayer(player),
		WithKeySource(strings.NewReader("  q")),
		WithKnowledge(knowledge.NewRetriever(&embedmock.Provider{Dims: 3}, knowledgemock.NewStore())),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run(t, a)

	if played := player.Played(); len(played) != 1 {
		t.Fatalf("played %d buffers, want 1", len(played))
	}
	if hist := a.Orchestrator().History(); len(hist) != 1 || hist[0].Question != "where do I go next" {
		t.Errorf("history = %+v", hist)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestAppTrackerWiring(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Tracker.Enabled = true
	cfg.Tracker.Interval = config.Duration(10 * time.Millisecond)
	cfg.Game.SeedLocation = "Hub Town"

	providers := testProviders()
	providers.Capture = &capturemock.Provider{Image: []byte("png")}
	providers.Analyzer = &llmmock.Provider{Content: `{"type":"location","location":"Ashen Vale"}`}

	a, err := New(context.Background(), cfg, providers,
		WithRecorder(&audiomock.Recorder{WAV: []byte("wav")}),
		WithPlayer(&audiomock.Player{}),
		WithKeySource(strings.NewReader("q")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Tracker() == nil {
		t.Fatal("tracker not built")
	}
	if got := a.Tracker().Current().Location; got != "Hub Town" {
		t.Errorf("seed location = %q", got)
	}

	run(t, a)
}

// syncBuffer guards a log buffer read while Run's goroutines still write.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// slowQuit holds the quit key back long enough for tracker cycles to run.
type slowQuit struct {
	delay time.Duration
	once  sync.Once
	sent  bool
}

func (r *slowQuit) Read(p []byte) (int, error) {
	r.once.Do(func() { time.Sleep(r.delay) })
	if r.sent {
		return 0, io.EOF
	}
	r.sent = true
	p[0] = 'q'
	return 1, nil
}

func TestAppLogsTrackerFailureOnce(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Tracker.Enabled = true
	cfg.Tracker.Interval = config.Duration(10 * time.Millisecond)

	providers := testProviders()
	providers.Capture = &capturemock.Provider{Err: errors.New("display gone")}

	logs := &syncBuffer{}
	a, err := New(context.Background(), cfg, providers,
		WithRecorder(&audiomock.Recorder{}),
		WithPlayer(&audiomock.Player{}),
		WithKeySource(&slowQuit{delay: 150 * time.Millisecond}),
		WithLogger(slog.New(slog.NewTextHandler(logs, nil))),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run(t, a)

	out := logs.String()
	if !strings.Contains(out, "refresh cycle failed") {
		t.Fatalf("tracker failure not logged:\n%s", out)
	}
	if strings.Contains(out, "tracker cycle failed") {
		t.Errorf("failure logged a second time by the app:\n%s", out)
	}
}

func TestAppTrackerReadinessCheck(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Tracker.Enabled = true
	cfg.Game.SeedLocation = "Hub Town"

	providers := testProviders()
	providers.Capture = &capturemock.Provider{Image: []byte("png")}

	a, err := New(context.Background(), cfg, providers,
		WithRecorder(&audiomock.Recorder{}),
		WithPlayer(&audiomock.Player{}),
		WithKeySource(strings.NewReader("q")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var tracker *health.Check
	for i := range a.checks {
		if a.checks[i].Name == "tracker" {
			tracker = &a.checks[i]
		}
	}
	if tracker == nil {
		t.Fatal("no tracker readiness check registered")
	}
	// The seed snapshot is freshly stamped, so the check passes at startup.
	if err := tracker.Probe(context.Background()); err != nil {
		t.Errorf("readiness after seed: %v", err)
	}
}

func TestAppRequiresAudioCommands(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), testConfig(), testProviders(),
		WithKeySource(strings.NewReader("q")),
	)
	if err == nil || !strings.Contains(err.Error(), "record_command") {
		t.Fatalf("err = %v, want missing record_command", err)
	}
}

func TestAppKnowledgeDisabledWithoutDSN(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), testProviders(),
		WithRecorder(&audiomock.Recorder{}),
		WithPlayer(&audiomock.Player{}),
		WithKeySource(strings.NewReader("q")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.searcher != nil {
		t.Error("searcher built without a DSN")
	}
}

func TestAppShutdownIdempotent(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), testProviders(),
		WithRecorder(&audiomock.Recorder{}),
		WithPlayer(&audiomock.Player{}),
		WithKeySource(strings.NewReader("q")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
