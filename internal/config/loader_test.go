package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  metrics_addr: ":9090"
  log_level: info
game:
  title: Eldenfall
  seed_location: Hub Town
  lexicon: [Valdros, Ashen Vale]
input:
  talk_key: " "
  quit_key: q
audio:
  record_command: arecord
  record_args: ["-f", "S16_LE", "-r", "16000", "-c", "1"]
  play_command: aplay
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  stt:
    name: whisper
    base_url: http://localhost:8080
  tts:
    name: elevenlabs
    api_key: el-test
  embeddings:
    name: openai
    api_key: sk-test
  capture:
    name: daemon
    base_url: http://localhost:8090
tracker:
  enabled: true
  interval: 2s
cache:
  ttl: 5m
knowledge:
  postgres_dsn: postgres://localhost/sidequest
  top_k: 4
turn:
  history_limit: 20
  timeouts:
    transcribe: 15s
    generate: 30s
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Game.Title != "Eldenfall" {
		t.Errorf("game.title = %q", cfg.Game.Title)
	}
	if cfg.Tracker.Interval.Std() != 2*time.Second {
		t.Errorf("tracker.interval = %s", cfg.Tracker.Interval.Std())
	}
	if cfg.Cache.TTL.Std() != 5*time.Minute {
		t.Errorf("cache.ttl = %s", cfg.Cache.TTL.Std())
	}
	if cfg.Turn.Timeouts.Generate.Std() != 30*time.Second {
		t.Errorf("turn.timeouts.generate = %s", cfg.Turn.Timeouts.Generate.Std())
	}
	if cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("providers.llm.model = %q", cfg.Providers.LLM.Model)
	}
	if len(cfg.Game.Lexicon) != 2 {
		t.Errorf("game.lexicon = %v", cfg.Game.Lexicon)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("serverr:\n  metrics_addr: ':9090'\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadFromReaderRejectsBadDuration(t *testing.T) {
	t.Parallel()

	yaml := strings.Replace(validYAML, "interval: 2s", "interval: soon", 1)
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err = %v, want invalid duration", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg, err := LoadFromReader(strings.NewReader(validYAML))
		if err != nil {
			t.Fatalf("base config: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "multi-char talk key",
			mutate:  func(c *Config) { c.Input.TalkKey = "space" },
			wantErr: "talk_key",
		},
		{
			name:    "talk and quit collide",
			mutate:  func(c *Config) { c.Input.QuitKey = c.Input.TalkKey },
			wantErr: "both",
		},
		{
			name:    "missing llm",
			mutate:  func(c *Config) { c.Providers.LLM.Name = "" },
			wantErr: "providers.llm.name is required",
		},
		{
			name:    "missing stt",
			mutate:  func(c *Config) { c.Providers.STT.Name = "" },
			wantErr: "providers.stt.name is required",
		},
		{
			name:    "tracker without capture",
			mutate:  func(c *Config) { c.Providers.Capture.Name = "" },
			wantErr: "requires providers.capture",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Cache.TTL = Duration(-time.Second) },
			wantErr: "cache.ttl",
		},
		{
			name:    "negative top_k",
			mutate:  func(c *Config) { c.Knowledge.TopK = -1 },
			wantErr: "top_k",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Turn.Timeouts.Generate = Duration(-time.Second) },
			wantErr: "turn.timeouts.generate",
		},
		{
			name:    "dsn without embeddings",
			mutate:  func(c *Config) { c.Providers.Embeddings.Name = "" },
			wantErr: "providers.embeddings",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Cache.TTL = Duration(-time.Minute)

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"server.log_level", "cache.ttl", "providers.llm.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/sidequest.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/sidequest.yaml") {
		t.Errorf("error does not name the path: %v", err)
	}
}
