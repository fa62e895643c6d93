package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perchfield/sidequest/internal/stage"
)

// UpdateType classifies what an analyzer cycle observed.
type UpdateType string

const (
	// UpdateNoop means nothing relevant changed on screen.
	UpdateNoop UpdateType = "noop"

	// UpdateLocation means the player moved to a new area.
	UpdateLocation UpdateType = "location"

	// UpdateInventory means the carried items changed.
	UpdateInventory UpdateType = "inventory"

	// UpdateBoth means location and inventory both changed.
	UpdateBoth UpdateType = "both"
)

// Update is the structured payload the analyzer model returns for one
// screenshot, interpreted relative to the previous snapshot.
type Update struct {
	Type      UpdateType        `json:"type"`
	Location  string            `json:"location,omitempty"`
	Inventory []string          `json:"inventory,omitempty"`
	Stats     map[string]string `json:"stats,omitempty"`
	Scene     string            `json:"scene,omitempty"`
}

// ParseUpdate extracts and validates an Update from raw model output.
// Models habitually wrap JSON in prose or code fences, so parsing starts at
// the first '{' and ends at the last '}'. Anything that does not decode into
// a valid Update is a generation error wrapping [stage.ErrMalformedOutput].
func ParseUpdate(raw string) (*Update, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, malformed("no JSON object in %q", truncate(raw))
	}

	var u Update
	if err := json.Unmarshal([]byte(raw[start:end+1]), &u); err != nil {
		return nil, malformed("decode update: %v", err)
	}

	switch u.Type {
	case UpdateNoop:
	case UpdateLocation, UpdateBoth:
		if strings.TrimSpace(u.Location) == "" {
			return nil, malformed("update type %q without a location", u.Type)
		}
	case UpdateInventory:
	default:
		return nil, malformed("unknown update type %q", u.Type)
	}
	return &u, nil
}

// Apply merges the update into prev and returns a new snapshot. prev may be
// nil for the very first cycle. CapturedAt and Seq are left for the caller
// to stamp at publication time.
func (u *Update) Apply(prev *GameState) *GameState {
	var next *GameState
	if prev != nil {
		next = prev.clone()
	} else {
		next = &GameState{}
	}

	switch u.Type {
	case UpdateLocation:
		next.Location = strings.TrimSpace(u.Location)
	case UpdateInventory:
		next.Inventory = append([]string(nil), u.Inventory...)
	case UpdateBoth:
		next.Location = strings.TrimSpace(u.Location)
		next.Inventory = append([]string(nil), u.Inventory...)
	}

	if len(u.Stats) > 0 {
		if next.Stats == nil {
			next.Stats = make(map[string]string, len(u.Stats))
		}
		for k, v := range u.Stats {
			next.Stats[k] = v
		}
	}
	if s := strings.TrimSpace(u.Scene); s != "" {
		next.Scene = s
	}
	return next
}

func malformed(format string, args ...any) error {
	return stage.NewError(stage.KindGeneration,
		fmt.Errorf("state: %s: %w", fmt.Sprintf(format, args...), stage.ErrMalformedOutput))
}

func truncate(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
