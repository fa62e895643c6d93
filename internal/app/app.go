// Package app wires all sidequest subsystems into a running copilot.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the tracker loop, input listener, turn
// orchestrator, and metrics server until quit, and Shutdown tears everything
// down in reverse order.
//
// For testing, inject mock implementations via functional options
// (WithRecorder, WithKeySource, WithKnowledge, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/perchfield/sidequest/internal/cache"
	"github.com/perchfield/sidequest/internal/config"
	"github.com/perchfield/sidequest/internal/health"
	"github.com/perchfield/sidequest/internal/input"
	"github.com/perchfield/sidequest/internal/knowledge"
	knowledgepg "github.com/perchfield/sidequest/internal/knowledge/postgres"
	"github.com/perchfield/sidequest/internal/observe"
	"github.com/perchfield/sidequest/internal/state"
	"github.com/perchfield/sidequest/internal/transcript"
	"github.com/perchfield/sidequest/internal/turn"
	"github.com/perchfield/sidequest/pkg/audio"
	"github.com/perchfield/sidequest/pkg/provider/capture"
	"github.com/perchfield/sidequest/pkg/provider/embeddings"
	"github.com/perchfield/sidequest/pkg/provider/llm"
	"github.com/perchfield/sidequest/pkg/provider/stt"
	"github.com/perchfield/sidequest/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM generates spoken answers.
	LLM llm.Provider

	// Analyzer reads screenshots for the game-state tracker. Nil reuses LLM.
	Analyzer llm.Provider

	STT        stt.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider
	Capture    capture.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger

	recorder audio.Recorder
	player   audio.Player
	keys     io.Reader

	searcher knowledge.Searcher
	answers  *cache.Cache
	tracker  *state.Tracker
	orch     *turn.Orchestrator
	listener *input.Listener
	metrics  *http.Server

	// checks feed the /readyz endpoint on the metrics server.
	checks []health.Check

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecorder injects a microphone recorder instead of building the
// configured exec recorder.
func WithRecorder(r audio.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithPlayer injects a speaker player instead of building the configured
// exec player.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithKeySource injects the byte stream push-to-talk events are read from.
// Default: os.Stdin.
func WithKeySource(r io.Reader) Option {
	return func(a *App) { a.keys = r }
}

// WithKnowledge injects a knowledge searcher instead of connecting to the
// configured PostgreSQL store.
func WithKnowledge(s knowledge.Searcher) Option {
	return func(a *App) { a.searcher = s }
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
		keys:      os.Stdin,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initAudio(); err != nil {
		return nil, fmt.Errorf("app: init audio: %w", err)
	}
	if err := a.initKnowledge(ctx); err != nil {
		return nil, fmt.Errorf("app: init knowledge: %w", err)
	}
	a.initCache()
	a.initTracker()
	a.initOrchestrator()
	a.initListener()
	a.initMetricsServer()

	return a, nil
}

// initAudio builds the exec recorder and player unless both were injected.
func (a *App) initAudio() error {
	if a.recorder == nil {
		if a.cfg.Audio.RecordCommand == "" {
			return errors.New("audio.record_command is required")
		}
		rec, err := audio.NewExecRecorder(a.cfg.Audio.RecordCommand, a.cfg.Audio.RecordArgs)
		if err != nil {
			return err
		}
		a.recorder = rec
	}
	if a.player == nil {
		if a.cfg.Audio.PlayCommand == "" {
			return errors.New("audio.play_command is required")
		}
		p, err := audio.NewExecPlayer(a.cfg.Audio.PlayCommand, a.cfg.Audio.PlayArgs)
		if err != nil {
			return err
		}
		a.player = p
	}
	return nil
}

// initKnowledge connects to the pgvector store and runs its migration,
// unless a searcher was injected or no DSN is configured.
func (a *App) initKnowledge(ctx context.Context) error {
	if a.searcher != nil {
		return nil
	}
	dsn := a.cfg.Knowledge.PostgresDSN
	if dsn == "" || a.providers.Embeddings == nil {
		a.logger.Warn("knowledge retrieval disabled; answers will be ungrounded")
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	store := knowledgepg.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.searcher = knowledge.NewRetriever(a.providers.Embeddings, store)
	a.checks = append(a.checks, health.Ping("postgres", pool.Ping))
	return nil
}

func (a *App) initCache() {
	if ttl := a.cfg.Cache.TTL.Std(); ttl > 0 {
		a.answers = cache.New(cache.WithTTL(ttl))
	}
}

func (a *App) initTracker() {
	if !a.cfg.Tracker.Enabled || a.providers.Capture == nil {
		return
	}
	analyzer := a.providers.Analyzer
	if analyzer == nil {
		analyzer = a.providers.LLM
	}

	opts := []state.TrackerOption{state.WithLogger(a.logger)}
	if d := a.cfg.Tracker.Interval.Std(); d > 0 {
		opts = append(opts, state.WithInterval(d))
	}
	if a.cfg.Game.SeedLocation != "" {
		opts = append(opts, state.WithSeed(a.cfg.Game.SeedLocation))
	}
	a.tracker = state.NewTracker(a.providers.Capture, analyzer, opts...)

	// Ready only while snapshots keep flowing. A few missed cycles is
	// tolerable; a snapshot older than five intervals is not.
	refresh := a.cfg.Tracker.Interval.Std()
	if refresh <= 0 {
		refresh = state.DefaultInterval
	}
	a.checks = append(a.checks, health.Staleness("tracker", 5*refresh, func() time.Time {
		if s := a.tracker.Current(); s != nil {
			return s.CapturedAt
		}
		return time.Time{}
	}))
}

func (a *App) initOrchestrator() {
	opts := []turn.Option{
		turn.WithLogger(a.logger),
		turn.WithGameTitle(a.cfg.Game.Title),
		turn.WithTimeouts(a.turnTimeouts()),
		turn.WithFallback(a.cfg.Turn.Fallback),
		turn.WithHistoryLimit(a.cfg.Turn.HistoryLimit),
	}
	if a.providers.Capture != nil {
		opts = append(opts, turn.WithScreen(a.providers.Capture))
	}
	if a.tracker != nil {
		opts = append(opts, turn.WithStateSource(a.tracker.Current))
	}
	if a.searcher != nil {
		opts = append(opts, turn.WithKnowledge(a.searcher))
		if a.cfg.Knowledge.TopK > 0 {
			opts = append(opts, turn.WithTopK(a.cfg.Knowledge.TopK))
		}
	}
	if a.answers != nil {
		opts = append(opts, turn.WithCache(a.answers))
	}
	if len(a.cfg.Game.Lexicon) > 0 {
		opts = append(opts, turn.WithCorrector(transcript.NewCorrector(a.cfg.Game.Lexicon)))
	}

	a.orch = turn.New(a.recorder, a.player, a.providers.STT, a.providers.TTS, a.providers.LLM, opts...)
}

func (a *App) initListener() {
	opts := []input.Option{input.WithLogger(a.logger)}
	if k := a.cfg.Input.TalkKey; len(k) == 1 {
		opts = append(opts, input.WithTalkKey(k[0]))
	}
	if k := a.cfg.Input.QuitKey; len(k) == 1 {
		opts = append(opts, input.WithQuitKey(k[0]))
	}
	a.listener = input.NewListener(a.keys, opts...)
}

func (a *App) initMetricsServer() {
	addr := a.cfg.Server.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(a.checks...).Register(mux)
	a.metrics = &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}
}

// turnTimeouts merges the configured timeouts over the defaults.
func (a *App) turnTimeouts() turn.Timeouts {
	t := turn.DefaultTimeouts()
	cfg := a.cfg.Turn.Timeouts
	if d := cfg.Capture.Std(); d > 0 {
		t.Capture = d
	}
	if d := cfg.Transcribe.Std(); d > 0 {
		t.Transcribe = d
	}
	if d := cfg.Retrieve.Std(); d > 0 {
		t.Retrieve = d
	}
	if d := cfg.Generate.Std(); d > 0 {
		t.Generate = d
	}
	if d := cfg.Synthesize.Std(); d > 0 {
		t.Synthesize = d
	}
	return t
}

// Tracker returns the game-state tracker, or nil when disabled.
func (a *App) Tracker() *state.Tracker {
	return a.tracker
}

// Orchestrator returns the voice turn orchestrator.
func (a *App) Orchestrator() *turn.Orchestrator {
	return a.orch
}

// Apply carries the hot-reloadable parts of a config change into the running
// subsystems. The log level is owned by main and handled there; sections the
// diff marks RestartNeeded are logged and left alone.
func (a *App) Apply(d config.ConfigDiff, newCfg *config.Config) {
	if d.FallbackChanged {
		a.orch.SetFallback(newCfg.Turn.Fallback)
		a.logger.Info("fallback line updated")
	}
	if d.LexiconChanged {
		var c *transcript.Corrector
		if len(newCfg.Game.Lexicon) > 0 {
			c = transcript.NewCorrector(newCfg.Game.Lexicon)
		}
		a.orch.SetCorrector(c)
		a.logger.Info("lexicon updated", "terms", len(newCfg.Game.Lexicon))
	}
	if d.CacheTTLChanged && a.answers != nil {
		a.answers.SetTTL(newCfg.Cache.TTL.Std())
		a.logger.Info("cache ttl updated", "ttl", newCfg.Cache.TTL.Std())
	}
	if len(d.RestartNeeded) > 0 {
		a.logger.Warn("config changes require a restart", "sections", d.RestartNeeded)
	}
}

// Run starts every loop and blocks until the quit key, the key source
// closing, or ctx cancellation. The first hard failure from any loop stops
// all of them.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if a.tracker != nil {
		// Failed cycles are logged by the tracker itself; Errors() stays
		// available for callers that want to react to them.
		g.Go(func() error {
			return a.tracker.Run(gctx)
		})
	}

	g.Go(func() error {
		return a.listener.Run(gctx)
	})

	g.Go(func() error {
		err := a.orch.Run(gctx, a.listener.Events())
		// A quit event ends the orchestrator loop; take everything else
		// down with it.
		cancel()
		return err
	})

	if a.metrics != nil {
		g.Go(func() error {
			a.logger.Info("metrics server listening", "addr", a.metrics.Addr)
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return a.metrics.Shutdown(sctx)
		})
	}

	a.logger.Info("sidequest running",
		"game", a.cfg.Game.Title,
		"tracker", a.tracker != nil,
		"knowledge", a.searcher != nil,
		"cache", a.answers != nil,
	)
	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "error", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
