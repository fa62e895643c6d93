// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. The knowledge
// retriever embeds player questions to rank lore entries by similarity, the
// response cache embeds normalized transcripts to detect repeated questions,
// and the indexing tool embeds whole entries at ingest time.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector returned by a single Provider instance has the same length,
// reported by Dimensions. Vectors from different providers or models live in
// different spaces and must not be compared against each other.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The text
	// is passed to the model verbatim; any model-specific prefixing (for
	// example "query: " for retrieval models) is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for all texts in one backend call. The
	// result is ordered like texts. On error no partial results are
	// returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by this provider.
	Dimensions() int

	// ModelID returns the backend model identifier, for logging and for
	// refusing to mix vectors from different models.
	ModelID() string
}
