package knowledge

import (
	"context"
	"fmt"

	"github.com/perchfield/sidequest/pkg/provider/embeddings"
)

// Store is the persistence boundary the Retriever searches over. Entries
// arrive pre-embedded; the store never talks to an embeddings backend.
type Store interface {
	// SearchVector returns up to topK entries matching f, ranked by
	// similarity to vec.
	SearchVector(ctx context.Context, vec []float32, f Filter, topK int) ([]Scored, error)

	// SearchFilter returns up to limit entries matching f, unranked.
	SearchFilter(ctx context.Context, f Filter, limit int) ([]Entry, error)
}

var _ Searcher = (*Retriever)(nil)

// Retriever composes an embeddings provider with a Store to implement
// semantic search. Both failure modes (embedding backend down, store down)
// surface as [ErrUnavailable] so the caller can degrade uniformly.
type Retriever struct {
	embedder embeddings.Provider
	store    Store
}

// NewRetriever constructs a Retriever.
func NewRetriever(embedder embeddings.Provider, store Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search implements Searcher. The query is embedded, then ranked against
// the store under the filter.
func (r *Retriever) Search(ctx context.Context, query string, f Filter, topK int) ([]Scored, error) {
	if topK <= 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w: %w", ErrUnavailable, err)
	}

	results, err := r.store.SearchVector(ctx, vec, f, topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge: vector search: %w", err)
	}
	return results, nil
}

// SearchFilter implements Searcher by delegating to the store.
func (r *Retriever) SearchFilter(ctx context.Context, f Filter, limit int) ([]Entry, error) {
	entries, err := r.store.SearchFilter(ctx, f, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: filter search: %w", err)
	}
	return entries, nil
}
