package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/perchfield/sidequest/internal/observe"
	"github.com/perchfield/sidequest/internal/stage"
	"github.com/perchfield/sidequest/pkg/provider/capture"
	"github.com/perchfield/sidequest/pkg/provider/llm"
)

// DefaultInterval is the refresh cadence used when no interval is configured.
const DefaultInterval = 2 * time.Second

const defaultErrBufSize = 16

// analyzerSystemPrompt instructs the model to act as a screenshot analyzer
// emitting exactly one Update JSON object.
const analyzerSystemPrompt = `You analyze video game screenshots and report changes to the game state.
You are given the previously known state and a fresh screenshot.
Respond with exactly one JSON object and nothing else, shaped as:
{"type":"noop|location|inventory|both","location":"...","inventory":["..."],"stats":{"health":"..."},"scene":"..."}
Use type "noop" when nothing relevant changed. Only include fields you can
read from the screenshot. Keep "scene" to one short sentence.`

// TrackerOption is a functional option for configuring a [Tracker].
type TrackerOption func(*Tracker)

// WithInterval sets the refresh interval. Default: 2s.
func WithInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.interval = d
	}
}

// WithSeed publishes an initial snapshot with the given location before the
// first refresh cycle, so readers never see a nil state.
func WithSeed(location string) TrackerOption {
	return func(t *Tracker) {
		t.seedLocation = location
	}
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// Tracker owns the current GameState and refreshes it on a fixed interval
// by capturing a screenshot and asking the analyzer model what changed.
//
// Current never blocks, even while a refresh is in flight: snapshots are
// published through an atomic pointer swap. A failed cycle keeps the
// previous snapshot in place, republished under a fresh sequence number, and
// reports the cause on the Errors channel. The Tracker never stops over a
// single bad cycle.
type Tracker struct {
	capture  capture.Provider
	llm      llm.Provider
	interval time.Duration
	logger   *slog.Logger
	metrics  *observe.Metrics

	seedLocation string

	current atomic.Pointer[GameState]
	seq     atomic.Uint64
	errs    chan error
}

// NewTracker constructs a Tracker over the given capture and generation
// providers.
func NewTracker(screen capture.Provider, gen llm.Provider, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		capture:  screen,
		llm:      gen,
		interval: DefaultInterval,
		logger:   slog.Default(),
		errs:     make(chan error, defaultErrBufSize),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With("component", "tracker")
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}

	if t.seedLocation != "" {
		t.publish(&GameState{
			Location:   t.seedLocation,
			CapturedAt: time.Now(),
		})
	}
	return t
}

// Current returns the latest snapshot without blocking. It is nil until the
// first publication (seed or successful cycle).
func (t *Tracker) Current() *GameState {
	return t.current.Load()
}

// Errors returns the channel carrying per-cycle failures. Sends never
// block; when the channel is full the error is dropped after logging.
func (t *Tracker) Errors() <-chan error {
	return t.errs
}

// Run executes the refresh loop until ctx is cancelled. One cycle runs
// immediately so the first real snapshot does not wait a full interval.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("tracker started", "interval", t.interval)

	t.refresh(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return nil
		case <-ticker.C:
			t.refresh(ctx)
		}
	}
}

// refresh runs one capture-analyze-publish cycle. Errors are reported, not
// returned: the loop must survive any single failure.
func (t *Tracker) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ctx, span := observe.StartSpan(ctx, "tracker.refresh")
	defer span.End()

	next, err := t.analyze(ctx)
	if err != nil {
		t.metrics.RecordTrackerCycle(ctx, false)
		t.report(ctx, err)

		// Republish under a fresh Seq so readers can tell the loop is
		// alive even though the content did not advance.
		if prev := t.current.Load(); prev != nil {
			t.publish(prev.clone())
		}
		return
	}

	t.metrics.RecordTrackerCycle(ctx, true)
	t.publish(next)
	t.logger.Debug("state refreshed",
		"location", next.Location,
		"seq", next.Seq,
	)
}

// analyze captures a screenshot, asks the model for an Update, and merges it
// into the previous snapshot.
func (t *Tracker) analyze(ctx context.Context) (*GameState, error) {
	start := time.Now()
	img, err := t.capture.Capture(ctx)
	t.metrics.RecordStage(ctx, stage.KindCapture, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, stage.NewError(stage.KindCapture, err)
	}

	prev := t.current.Load()

	start = time.Now()
	resp, err := t.llm.Complete(ctx, llm.Request{
		System: analyzerSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: "Previously known state:\n" + describe(prev)},
		},
		Image: img,
	})
	t.metrics.RecordStage(ctx, stage.KindGeneration, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, stage.NewError(stage.KindGeneration, err)
	}

	update, err := ParseUpdate(resp.Content)
	if err != nil {
		return nil, err
	}

	next := update.Apply(prev)
	next.CapturedAt = time.Now()
	return next, nil
}

// publish stamps the next sequence number and swaps the snapshot in.
func (t *Tracker) publish(s *GameState) {
	s.Seq = t.seq.Add(1)
	t.current.Store(s)
}

// report sends err to the error channel without blocking.
func (t *Tracker) report(ctx context.Context, err error) {
	t.logger.WarnContext(ctx, "refresh cycle failed",
		"stage", string(stage.KindOf(err)),
		"error", err,
	)
	select {
	case t.errs <- err:
	default:
	}
}

// describe renders the previous state for the analyzer prompt.
func describe(s *GameState) string {
	if s == nil {
		return "(none yet)"
	}
	b, err := json.Marshal(struct {
		Location  string            `json:"location,omitempty"`
		Inventory []string          `json:"inventory,omitempty"`
		Stats     map[string]string `json:"stats,omitempty"`
		Scene     string            `json:"scene,omitempty"`
	}{s.Location, s.Inventory, s.Stats, s.Scene})
	if err != nil {
		return fmt.Sprintf("location: %s", s.Location)
	}
	return string(b)
}
