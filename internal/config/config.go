// Package config provides the configuration schema, loader, and provider
// registry for the sidequest copilot.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps time.Duration so YAML values can be written as "250ms" or
// "2s" instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	Input     InputConfig     `yaml:"input"`
	Audio     AudioConfig     `yaml:"audio"`
	Providers ProvidersConfig `yaml:"providers"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Cache     CacheConfig     `yaml:"cache"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Turn      TurnConfig      `yaml:"turn"`
}

// ServerConfig holds the metrics endpoint and logging settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// GameConfig describes the game being played.
type GameConfig struct {
	// Title names the game in the answer persona (e.g., "Eldenfall").
	Title string `yaml:"title"`

	// SeedLocation is the player's starting location, published as the
	// initial game-state snapshot before the first tracker cycle.
	SeedLocation string `yaml:"seed_location"`

	// Lexicon lists in-game proper nouns (bosses, regions, items) used to
	// repair transcription errors. Optional.
	Lexicon []string `yaml:"lexicon"`
}

// InputConfig selects the push-to-talk keys. Each value must be a single
// character; empty means the built-in default (space to talk, q to quit).
type InputConfig struct {
	TalkKey string `yaml:"talk_key"`
	QuitKey string `yaml:"quit_key"`
}

// AudioConfig configures the external recorder and player commands. The
// record command must write s16le 16 kHz mono PCM to stdout until killed;
// the play command must read the same format from stdin.
type AudioConfig struct {
	RecordCommand string   `yaml:"record_command"`
	RecordArgs    []string `yaml:"record_args"`
	PlayCommand   string   `yaml:"play_command"`
	PlayArgs      []string `yaml:"play_args"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline boundary. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// LLM generates spoken answers. It should be a vision-capable model so
	// screenshots can accompany questions.
	LLM ProviderEntry `yaml:"llm"`

	// Analyzer is the model the game-state tracker uses to read
	// screenshots. Leave the name empty to reuse the LLM entry.
	Analyzer ProviderEntry `yaml:"analyzer"`

	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
	Capture    ProviderEntry `yaml:"capture"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Leave empty to
	// use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// TrackerConfig controls the periodic game-state refresh loop.
type TrackerConfig struct {
	// Enabled starts the tracker loop. When false, turns run without
	// game-state context.
	Enabled bool `yaml:"enabled"`

	// Interval between refresh cycles. Default: 2s.
	Interval Duration `yaml:"interval"`
}

// CacheConfig controls the answer cache.
type CacheConfig struct {
	// TTL is how long a cached answer stays valid. Zero disables caching.
	TTL Duration `yaml:"ttl"`
}

// KnowledgeConfig holds settings for the knowledge retrieval layer.
type KnowledgeConfig struct {
	// PostgresDSN is the connection string for the pgvector store. Empty
	// disables retrieval; answers are then ungrounded.
	PostgresDSN string `yaml:"postgres_dsn"`

	// TopK is how many entries are retrieved per question. Default: 4.
	TopK int `yaml:"top_k"`
}

// TurnConfig tunes the voice turn pipeline.
type TurnConfig struct {
	// HistoryLimit caps the in-process conversation history. Default: 20.
	HistoryLimit int `yaml:"history_limit"`

	// Fallback overrides the line spoken when a turn fails.
	Fallback string `yaml:"fallback"`

	// Timeouts bounds the network-bound stages.
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig holds the per-stage timeouts. Zero fields use the built-in
// defaults.
type TimeoutsConfig struct {
	Capture    Duration `yaml:"capture"`
	Transcribe Duration `yaml:"transcribe"`
	Retrieve   Duration `yaml:"retrieve"`
	Generate   Duration `yaml:"generate"`
	Synthesize Duration `yaml:"synthesize"`
}
