// Package state owns the copilot's running model of the game. A background
// Tracker refreshes the model from periodic screenshots, and the voice
// pipeline reads the latest snapshot through a single atomic accessor.
package state

import (
	"strings"
	"time"
)

// GameState is one immutable snapshot of the believed game state. The
// Tracker replaces the current snapshot wholesale; a snapshot is never
// mutated after publication, so readers can hold one across a whole voice
// turn without locking.
type GameState struct {
	// Location is the player's current area or zone name.
	Location string

	// Stats holds HUD readouts like health, level, or currency.
	Stats map[string]string

	// Inventory lists notable carried items.
	Inventory []string

	// Scene is a free-text description of what is on screen.
	Scene string

	// CapturedAt is when the underlying screenshot was taken.
	CapturedAt time.Time

	// Seq increases with every published snapshot, including republished
	// ones after a failed refresh cycle, so readers can detect staleness.
	Seq uint64
}

// Fingerprint derives the cache-key component of the snapshot: the fields
// whose change invalidates a previously generated answer. Currently that is
// the location alone, case-folded. A nil snapshot fingerprints to "".
func (s *GameState) Fingerprint() string {
	if s == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s.Location))
}

// clone returns a deep copy so an update never aliases the published
// snapshot's maps and slices.
func (s *GameState) clone() *GameState {
	out := &GameState{
		Location:   s.Location,
		Scene:      s.Scene,
		CapturedAt: s.CapturedAt,
		Seq:        s.Seq,
	}
	if s.Stats != nil {
		out.Stats = make(map[string]string, len(s.Stats))
		for k, v := range s.Stats {
			out.Stats[k] = v
		}
	}
	if s.Inventory != nil {
		out.Inventory = append([]string(nil), s.Inventory...)
	}
	return out
}
