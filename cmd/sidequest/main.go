// Command sidequest is the push-to-talk gaming copilot. It listens for the
// talk key, records a spoken question, and answers out loud with the game
// state and indexed lore as context.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/perchfield/sidequest/internal/app"
	"github.com/perchfield/sidequest/internal/config"
	"github.com/perchfield/sidequest/internal/input"
	"github.com/perchfield/sidequest/internal/observe"
	"github.com/perchfield/sidequest/pkg/provider/capture"
	"github.com/perchfield/sidequest/pkg/provider/capture/daemon"
	"github.com/perchfield/sidequest/pkg/provider/embeddings"
	ollamaembed "github.com/perchfield/sidequest/pkg/provider/embeddings/ollama"
	oaembed "github.com/perchfield/sidequest/pkg/provider/embeddings/openai"
	"github.com/perchfield/sidequest/pkg/provider/llm"
	"github.com/perchfield/sidequest/pkg/provider/llm/anyllm"
	oallm "github.com/perchfield/sidequest/pkg/provider/llm/openai"
	"github.com/perchfield/sidequest/pkg/provider/stt"
	sttelevenlabs "github.com/perchfield/sidequest/pkg/provider/stt/elevenlabs"
	"github.com/perchfield/sidequest/pkg/provider/stt/whisper"
	"github.com/perchfield/sidequest/pkg/provider/tts"
	"github.com/perchfield/sidequest/pkg/provider/tts/coqui"
	ttselevenlabs "github.com/perchfield/sidequest/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "sidequest.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sidequest: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sidequest: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sidequest starting",
		"config", *configPath,
		"game", cfg.Game.Title,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "sidequest",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Raw terminal ──────────────────────────────────────────────────────────
	// Push-to-talk needs unbuffered key reads. A pipe as stdin (tests,
	// scripting) works without raw mode.
	if fd := int(os.Stdin.Fd()); input.IsTerminal(fd) {
		restore, err := input.Raw(fd)
		if err != nil {
			slog.Error("failed to enter raw terminal mode", "err", err)
			return 1
		}
		defer func() {
			if err := restore(); err != nil {
				slog.Warn("terminal restore error", "err", err)
			}
		}()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Changed() {
			return
		}
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		application.Apply(d, new)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("ready — hold the talk key to ask, quit key or Ctrl+C to exit")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai goes through the official SDK for vision support.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		p, err := oallm.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile all
	// share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		p, err := whisper.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		p, err := whisper.NewNative(modelPath, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterSTT("elevenlabs", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttelevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, sttelevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttelevenlabs.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttelevenlabs.WithLanguage(lang))
		}
		p, err := sttelevenlabs.New(entry.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttselevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, ttselevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, ttselevenlabs.WithOutputFormat(outputFmt))
		}
		p, err := ttselevenlabs.New(entry.APIKey, optString(entry.Options, "voice_id"), opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		p, err := coqui.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		p, err := oaembed.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		p, err := ollamaembed.New(entry.BaseURL, entry.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterCapture("daemon", func(entry config.ProviderEntry) (capture.Provider, error) {
		var opts []daemon.Option
		if display := optString(entry.Options, "display"); display != "" {
			opts = append(opts, daemon.WithDisplay(display))
		}
		p, err := daemon.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. LLM, STT, and TTS are required by config validation; the analyzer,
// embeddings, and capture slots stay nil when unconfigured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	if name := cfg.Providers.Analyzer.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.Analyzer)
		if err != nil {
			return nil, fmt.Errorf("create analyzer provider %q: %w", name, err)
		}
		ps.Analyzer = p
		slog.Info("provider created", "kind", "analyzer", "name", name)
	}

	sp, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.STT = sp
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	tp, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	ps.TTS = tp
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	if name := cfg.Providers.Capture.Name; name != "" {
		p, err := reg.CreateCapture(cfg.Providers.Capture)
		if err != nil {
			return nil, fmt.Errorf("create capture provider %q: %w", name, err)
		}
		ps.Capture = p
		slog.Info("provider created", "kind", "capture", "name", name)
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        sidequest — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printLine("Game", cfg.Game.Title)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Analyzer", cfg.Providers.Analyzer.Name, cfg.Providers.Analyzer.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("Capture", cfg.Providers.Capture.Name, "")
	if cfg.Tracker.Enabled {
		printLine("Tracker", "enabled")
	} else {
		printLine("Tracker", "(disabled)")
	}
	if cfg.Knowledge.PostgresDSN != "" {
		printLine("Knowledge", "postgres")
	} else {
		printLine("Knowledge", "(disabled)")
	}
	if cfg.Server.MetricsAddr != "" {
		printLine("Metrics addr", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printLine(kind, value)
}

func printLine(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
