// Package knowledge provides grounding lookups for answer generation: a
// store of indexed game lore searchable by embedding similarity, by
// structured metadata, or both combined. The filter is a hard constraint;
// similarity only ranks within it.
package knowledge

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable marks retrieval failures caused by the backing store or the
// embeddings backend being unreachable. The voice pipeline degrades to an
// ungrounded answer instead of failing the turn.
var ErrUnavailable = errors.New("knowledge: store unavailable")

// Entry is one indexed lore record: a character, enemy, item, or place.
// Entries are read-only from the pipeline's perspective; the indexer tool
// owns writes.
type Entry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Race        string   `json:"race,omitempty"`
	Role        string   `json:"role,omitempty"`
	Region      string   `json:"region,omitempty"`
	Affiliation string   `json:"affiliation,omitempty"`
	Quest       string   `json:"quest,omitempty"`
	Locations   []string `json:"locations,omitempty"`
	Hostile     bool     `json:"hostile,omitempty"`
	// BecomesHostile marks entries that turn hostile under quest conditions.
	BecomesHostile bool     `json:"becomes_hostile,omitempty"`
	Drops          []string `json:"drops,omitempty"`
	Description    string   `json:"description,omitempty"`
	Lore           string   `json:"lore,omitempty"`
	Dialogue       string   `json:"dialogue,omitempty"`
	Weakness       string   `json:"weakness,omitempty"`
	Resistance     string   `json:"resistance,omitempty"`
	Tips           string   `json:"tips,omitempty"`

	// Embedding is the vector for the entry's Document text. Populated by
	// the indexer; empty on entries loaded from JSON before indexing.
	Embedding []float32 `json:"-"`
}

// Document renders the entry as the flat text that gets embedded and that
// generation receives as grounding context.
func (e *Entry) Document() string {
	var b strings.Builder
	add := func(label, value string) {
		if value != "" {
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}

	add("Name", e.Name)
	add("Race", e.Race)
	add("Role", e.Role)
	add("Region", e.Region)
	add("Affiliation", e.Affiliation)
	add("Quest", e.Quest)
	if len(e.Locations) > 0 {
		add("Locations", strings.Join(e.Locations, ", "))
	}
	if e.Hostile {
		add("Hostile", "yes")
	} else if e.BecomesHostile {
		add("Hostile", "becomes hostile")
	}
	if len(e.Drops) > 0 {
		add("Drops", strings.Join(e.Drops, ", "))
	}
	add("Description", e.Description)
	add("Lore", e.Lore)
	add("Dialogue", e.Dialogue)
	add("Weakness", e.Weakness)
	add("Resistance", e.Resistance)
	add("Tips", e.Tips)
	return strings.TrimRight(b.String(), "\n")
}

// Filter restricts a search to entries matching every present predicate.
// Each field is a set-membership test; nil means unconstrained. Matching is
// case-insensitive.
type Filter struct {
	Regions []string
	Roles   []string
	Races   []string
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool {
	return len(f.Regions) == 0 && len(f.Roles) == 0 && len(f.Races) == 0
}

// Matches reports whether e satisfies every present predicate.
func (f Filter) Matches(e *Entry) bool {
	if len(f.Regions) > 0 && !containsFold(f.Regions, e.Region) {
		return false
	}
	if len(f.Roles) > 0 && !containsFold(f.Roles, e.Role) {
		return false
	}
	if len(f.Races) > 0 && !containsFold(f.Races, e.Race) {
		return false
	}
	return true
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Scored pairs an entry with its similarity score, higher is better.
type Scored struct {
	Entry Entry
	Score float64
}

// Searcher is what the voice pipeline sees: ranked semantic search with an
// optional hard filter, and a pure metadata search.
type Searcher interface {
	// Search returns up to topK entries matching f, ranked by similarity
	// to the query text. An empty result is valid, not an error.
	Search(ctx context.Context, query string, f Filter, topK int) ([]Scored, error)

	// SearchFilter returns up to limit entries matching f, unranked.
	SearchFilter(ctx context.Context, f Filter, limit int) ([]Entry, error)
}
