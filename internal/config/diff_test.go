package config

import (
	"slices"
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{MetricsAddr: ":9090", LogLevel: LogInfo},
		Game: GameConfig{
			Title:   "Eldenfall",
			Lexicon: []string{"Valdros", "Ashen Vale"},
		},
		Providers: ProvidersConfig{
			LLM: ProviderEntry{Name: "openai", Model: "gpt-4o"},
		},
		Cache: CacheConfig{TTL: Duration(5 * time.Minute)},
		Turn:  TurnConfig{Fallback: "Sorry, I couldn't process that."},
	}
}

func TestDiffNoChange(t *testing.T) {
	t.Parallel()

	d := Diff(baseConfig(), baseConfig())
	if d.Changed() {
		t.Errorf("identical configs reported a diff: %+v", d)
	}
}

func TestDiffHotReloadable(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = LogDebug
	new.Game.Lexicon = append(new.Game.Lexicon, "Gloom Wisp")
	new.Turn.Fallback = "One moment."
	new.Cache.TTL = Duration(time.Minute)

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if !d.LexiconChanged {
		t.Error("lexicon change not detected")
	}
	if !d.FallbackChanged {
		t.Error("fallback change not detected")
	}
	if !d.CacheTTLChanged {
		t.Error("cache TTL change not detected")
	}
	if len(d.RestartNeeded) != 0 {
		t.Errorf("hot-reloadable changes flagged for restart: %v", d.RestartNeeded)
	}
}

func TestDiffRestartNeeded(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	new := baseConfig()
	new.Providers.LLM.Model = "gpt-4o-mini"
	new.Game.Title = "Hollowmere"

	d := Diff(old, new)
	if !slices.Contains(d.RestartNeeded, "providers") {
		t.Errorf("provider change missing from RestartNeeded: %v", d.RestartNeeded)
	}
	if !slices.Contains(d.RestartNeeded, "game.title") {
		t.Errorf("title change missing from RestartNeeded: %v", d.RestartNeeded)
	}
	if !d.Changed() {
		t.Error("Changed() = false with restart-needed entries")
	}
}
