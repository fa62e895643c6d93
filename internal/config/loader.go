package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"whisper", "whisper-native", "elevenlabs"},
	"tts":        {"elevenlabs", "coqui"},
	"embeddings": {"openai", "ollama"},
	"capture":    {"daemon"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found. Conditions that merely
// degrade the copilot (no knowledge store, no tracker) are logged as
// warnings, not returned as errors.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Input.TalkKey != "" && len(cfg.Input.TalkKey) != 1 {
		errs = append(errs, fmt.Errorf("input.talk_key %q must be a single character", cfg.Input.TalkKey))
	}
	if cfg.Input.QuitKey != "" && len(cfg.Input.QuitKey) != 1 {
		errs = append(errs, fmt.Errorf("input.quit_key %q must be a single character", cfg.Input.QuitKey))
	}
	if cfg.Input.TalkKey != "" && cfg.Input.TalkKey == cfg.Input.QuitKey {
		errs = append(errs, fmt.Errorf("input.talk_key and input.quit_key are both %q", cfg.Input.TalkKey))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.Analyzer.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("capture", cfg.Providers.Capture.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	if cfg.Tracker.Enabled && cfg.Providers.Capture.Name == "" {
		errs = append(errs, errors.New("tracker.enabled requires providers.capture"))
	}
	if cfg.Tracker.Interval < 0 {
		errs = append(errs, fmt.Errorf("tracker.interval %s is negative", cfg.Tracker.Interval.Std()))
	}

	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl %s is negative", cfg.Cache.TTL.Std()))
	}
	if cfg.Knowledge.TopK < 0 {
		errs = append(errs, fmt.Errorf("knowledge.top_k %d is negative", cfg.Knowledge.TopK))
	}

	for _, tc := range []struct {
		name string
		d    Duration
	}{
		{"capture", cfg.Turn.Timeouts.Capture},
		{"transcribe", cfg.Turn.Timeouts.Transcribe},
		{"retrieve", cfg.Turn.Timeouts.Retrieve},
		{"generate", cfg.Turn.Timeouts.Generate},
		{"synthesize", cfg.Turn.Timeouts.Synthesize},
	} {
		if tc.d < 0 {
			errs = append(errs, fmt.Errorf("turn.timeouts.%s %s is negative", tc.name, tc.d.Std()))
		}
	}

	if cfg.Knowledge.PostgresDSN == "" {
		slog.Warn("knowledge.postgres_dsn is empty; answers will not be grounded in game knowledge")
	} else if cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("knowledge.postgres_dsn is set but providers.embeddings is not configured"))
	}
	if !cfg.Tracker.Enabled {
		slog.Warn("tracker is disabled; turns will carry no game-state context")
	}
	if cfg.Cache.TTL == 0 {
		slog.Warn("cache.ttl is zero; answer caching is disabled")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
