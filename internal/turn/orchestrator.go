package turn

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/perchfield/sidequest/internal/cache"
	"github.com/perchfield/sidequest/internal/input"
	"github.com/perchfield/sidequest/internal/knowledge"
	"github.com/perchfield/sidequest/internal/observe"
	"github.com/perchfield/sidequest/internal/stage"
	"github.com/perchfield/sidequest/internal/state"
	"github.com/perchfield/sidequest/internal/transcript"
	"github.com/perchfield/sidequest/pkg/audio"
	"github.com/perchfield/sidequest/pkg/provider/capture"
	"github.com/perchfield/sidequest/pkg/provider/llm"
	"github.com/perchfield/sidequest/pkg/provider/stt"
	"github.com/perchfield/sidequest/pkg/provider/tts"
)

const (
	defaultGameTitle    = "the game"
	defaultTopK         = 4
	defaultHistoryLimit = 20
	defaultFallback     = "Sorry, I couldn't process that."
)

// Orchestrator drives the voice turn state machine. Feed it press/release
// events via [Orchestrator.Run]; everything else happens internally.
type Orchestrator struct {
	recorder audio.Recorder
	player   audio.Player
	sttP     stt.Provider
	ttsP     tts.Provider
	gen      llm.Provider

	screen   capture.Provider        // nil = turns carry no screenshot
	current  func() *state.GameState // nil = no game-state context
	searcher knowledge.Searcher      // nil = answers are never grounded
	answers  *cache.Cache            // nil = caching disabled

	logger       *slog.Logger
	metrics      *observe.Metrics
	gameTitle    string
	topK         int
	historyLimit int
	timeouts     Timeouts

	st atomic.Int32
	wg sync.WaitGroup

	mu        sync.Mutex
	history   []Exchange
	pending   *pendingTurn
	fallback  string                 // replaceable via SetFallback
	corrector *transcript.Corrector // nil = no lexicon correction
}

// pendingTurn carries the press-time context of a recording into the
// pipeline once the talk key is released.
type pendingTurn struct {
	snapshot *state.GameState
	image    []byte
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithScreen enables press-time screenshots through the given provider.
func WithScreen(p capture.Provider) Option {
	return func(o *Orchestrator) { o.screen = p }
}

// WithStateSource sets the function turns snapshot the game state from,
// typically [state.Tracker.Current].
func WithStateSource(fn func() *state.GameState) Option {
	return func(o *Orchestrator) { o.current = fn }
}

// WithKnowledge enables answer grounding through the given searcher.
func WithKnowledge(s knowledge.Searcher) Option {
	return func(o *Orchestrator) { o.searcher = s }
}

// WithCache enables the semantic response cache.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) { o.answers = c }
}

// WithCorrector enables lexicon correction of transcripts.
func WithCorrector(c *transcript.Corrector) Option {
	return func(o *Orchestrator) { o.corrector = c }
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the metrics instance. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithGameTitle names the game in the coach persona prompt.
func WithGameTitle(title string) Option {
	return func(o *Orchestrator) {
		if title != "" {
			o.gameTitle = title
		}
	}
}

// WithTopK sets how many knowledge entries are retrieved per turn.
// Default: 4. Zero disables retrieval.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// WithHistoryLimit caps the conversation history. Default: 20 exchanges.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// WithFallback overrides the line spoken when a turn fails.
func WithFallback(text string) Option {
	return func(o *Orchestrator) {
		if text != "" {
			o.fallback = text
		}
	}
}

// WithTimeouts overrides the per-stage timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) { o.timeouts = t }
}

// New constructs an Orchestrator over the five required providers. Optional
// collaborators (screenshots, game state, knowledge, cache, correction) are
// attached via options; without them the orchestrator still answers, just
// with less context.
func New(rec audio.Recorder, player audio.Player, sttP stt.Provider, ttsP tts.Provider, gen llm.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		recorder:     rec,
		player:       player,
		sttP:         sttP,
		ttsP:         ttsP,
		gen:          gen,
		logger:       slog.Default(),
		gameTitle:    defaultGameTitle,
		topK:         defaultTopK,
		historyLimit: defaultHistoryLimit,
		fallback:     defaultFallback,
		timeouts:     DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "turn")
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// State returns the current phase of the state machine without blocking.
func (o *Orchestrator) State() State {
	return State(o.st.Load())
}

// SetFallback replaces the line spoken when a turn fails. Safe to call
// while turns are in flight.
func (o *Orchestrator) SetFallback(text string) {
	if text == "" {
		text = defaultFallback
	}
	o.mu.Lock()
	o.fallback = text
	o.mu.Unlock()
}

// SetCorrector replaces the lexicon corrector. Pass nil to disable
// correction. Safe to call while turns are in flight.
func (o *Orchestrator) SetCorrector(c *transcript.Corrector) {
	o.mu.Lock()
	o.corrector = c
	o.mu.Unlock()
}

func (o *Orchestrator) fallbackLine() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fallback
}

func (o *Orchestrator) currentCorrector() *transcript.Corrector {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.corrector
}

// History returns a copy of the conversation history, oldest first.
func (o *Orchestrator) History() []Exchange {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Exchange, len(o.history))
	copy(out, o.history)
	return out
}

// Wait blocks until the in-flight turn goroutine, if any, finishes. This is
// primarily useful in tests to synchronise before inspecting mock call
// records.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run consumes push-to-talk events until a quit event, the channel closing,
// or ctx cancellation. Quit cancels an in-flight turn at its next suspension
// point; Run waits for the turn goroutine to finish before returning.
func (o *Orchestrator) Run(ctx context.Context, events <-chan input.Event) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		o.wg.Wait()
		// A recording abandoned by quit is discarded, but the microphone
		// still has to be released.
		if o.st.CompareAndSwap(int32(StateRecording), int32(StateIdle)) {
			if _, err := o.recorder.Stop(); err != nil {
				o.logger.Debug("recorder stop on shutdown", "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case input.KindQuit:
				o.logger.Info("quit requested")
				return nil
			case input.KindPress:
				o.handlePress(turnCtx)
			case input.KindRelease:
				o.handleRelease(turnCtx)
			}
		}
	}
}

// handlePress starts a recording when idle. The game-state snapshot and the
// screenshot are taken here, at press time, so the turn answers about what
// the player was looking at when they started asking.
func (o *Orchestrator) handlePress(ctx context.Context) {
	if !o.st.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		o.logger.Debug("press dropped, turn in flight", "state", o.State().String())
		return
	}

	var snapshot *state.GameState
	if o.current != nil {
		snapshot = o.current()
	}

	var image []byte
	if o.screen != nil {
		cctx := ctx
		if o.timeouts.Capture > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, o.timeouts.Capture)
			defer cancel()
		}
		start := time.Now()
		img, err := o.screen.Capture(cctx)
		o.metrics.RecordStage(ctx, stage.KindCapture, time.Since(start).Seconds(), err)
		if err != nil {
			o.logger.Warn("screenshot failed, continuing without image", "error", err)
		} else {
			image = img
		}
	}

	if err := o.recorder.Start(ctx); err != nil {
		o.logger.Error("recorder start failed", "error", err)
		o.st.Store(int32(StateIdle))
		return
	}

	o.mu.Lock()
	o.pending = &pendingTurn{snapshot: snapshot, image: image}
	o.mu.Unlock()
}

// handleRelease stops the recording and hands the turn to the pipeline
// goroutine. The event loop stays responsive; further presses are dropped by
// the state check until the turn completes.
func (o *Orchestrator) handleRelease(ctx context.Context) {
	if State(o.st.Load()) != StateRecording {
		o.logger.Debug("release dropped, not recording", "state", o.State().String())
		return
	}

	o.mu.Lock()
	p := o.pending
	o.pending = nil
	o.mu.Unlock()

	o.st.Store(int32(StateTranscribing))
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runTurn(ctx, p)
	}()
}
