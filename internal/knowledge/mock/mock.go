// Package mock provides an in-memory knowledge.Store for tests and offline
// runs, ranking by cosine similarity.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/perchfield/sidequest/internal/knowledge"
)

var _ knowledge.Store = (*Store)(nil)

// Store holds entries in memory. Set Err to make every search fail, which
// simulates an unreachable backend.
type Store struct {
	Err error

	mu      sync.Mutex
	entries []knowledge.Entry
}

// NewStore builds a Store seeded with entries.
func NewStore(entries ...knowledge.Entry) *Store {
	return &Store{entries: entries}
}

// Add appends entries after construction.
func (s *Store) Add(entries ...knowledge.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
}

// SearchVector implements knowledge.Store.
func (s *Store) SearchVector(_ context.Context, vec []float32, f knowledge.Filter, topK int) ([]knowledge.Scored, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var results []knowledge.Scored
	for _, e := range s.entries {
		if !f.Matches(&e) {
			continue
		}
		results = append(results, knowledge.Scored{
			Entry: e,
			Score: cosine(vec, e.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SearchFilter implements knowledge.Store.
func (s *Store) SearchFilter(_ context.Context, f knowledge.Filter, limit int) ([]knowledge.Entry, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []knowledge.Entry
	for _, e := range s.entries {
		if f.Matches(&e) {
			entries = append(entries, e)
			if len(entries) == limit {
				break
			}
		}
	}
	return entries, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is
// empty or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
