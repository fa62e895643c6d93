package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level, lexicon,
// fallback line, and cache TTL can be applied to a running process; changes
// listed in RestartNeeded take effect on the next start.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LexiconChanged  bool
	FallbackChanged bool
	CacheTTLChanged bool

	// RestartNeeded lists the config sections whose changes cannot be
	// hot-reloaded.
	RestartNeeded []string
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.LexiconChanged || d.FallbackChanged ||
		d.CacheTTLChanged || len(d.RestartNeeded) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Game.Lexicon, new.Game.Lexicon) {
		d.LexiconChanged = true
	}
	if old.Turn.Fallback != new.Turn.Fallback {
		d.FallbackChanged = true
	}
	if old.Cache.TTL != new.Cache.TTL {
		d.CacheTTLChanged = true
	}

	for _, sec := range []struct {
		name     string
		old, new any
	}{
		{"server.metrics_addr", old.Server.MetricsAddr, new.Server.MetricsAddr},
		{"game.title", old.Game.Title, new.Game.Title},
		{"game.seed_location", old.Game.SeedLocation, new.Game.SeedLocation},
		{"input", old.Input, new.Input},
		{"audio", old.Audio, new.Audio},
		{"providers", old.Providers, new.Providers},
		{"tracker", old.Tracker, new.Tracker},
		{"knowledge", old.Knowledge, new.Knowledge},
		{"turn.timeouts", old.Turn.Timeouts, new.Turn.Timeouts},
		{"turn.history_limit", old.Turn.HistoryLimit, new.Turn.HistoryLimit},
	} {
		if !reflect.DeepEqual(sec.old, sec.new) {
			d.RestartNeeded = append(d.RestartNeeded, sec.name)
		}
	}

	return d
}
