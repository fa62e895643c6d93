// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"math"
	"sync"

	"github.com/perchfield/sidequest/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock embeddings.Provider. By default it derives a
// deterministic vector from the input text so different texts get different
// embeddings; set Vector to force a fixed result, or Err to force failures.
type Provider struct {
	Vector []float32
	Err    error

	// Dims is the reported and generated dimension. Zero defaults to 8.
	Dims int

	mu    sync.Mutex
	texts []string
}

func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Vector != nil {
		return p.Vector, nil
	}
	return derive(text, p.dims()), nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (p *Provider) Dimensions() int {
	return p.dims()
}

func (p *Provider) ModelID() string {
	return "mock-embed"
}

// Texts returns every text passed to Embed or EmbedBatch so far.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}

func (p *Provider) dims() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return 8
}

// derive hashes text into a stable unit-length vector. Equal texts map to
// equal vectors, so similarity checks in tests behave like a real model on
// exact repeats.
func derive(text string, dims int) []float32 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(text); i++ {
		h ^= uint64(text[i])
		h *= 1099511628211
	}
	vec := make([]float32, dims)
	var norm float32
	for i := range vec {
		h ^= h << 13
		h ^= h >> 7
		h ^= h << 17
		v := float32(int64(h%2000)-1000) / 1000
		vec[i] = v
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
