package embedding

import (
	"context"
	"math"
	"strings"
)

// HashEmbedder is a deterministic, dependency-free embedding provider. Each
// token contributes to a bucket chosen by character hashing and the result
// is L2-normalized, so identical texts embed identically and overlapping
// texts land near each other. Suitable for tests and offline single-node
// runs; not a substitute for a learned model.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder with the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 128
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed produces the normalized token-hash vector for text.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimension)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		for i, char := range word {
			idx := (int(char) + i) % e.dimension
			vector[idx] += 1.0
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vector {
			vector[i] /= n
		}
	}
	return vector, nil
}

// EmbedBatch embeds each text independently.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimension returns the vector dimension.
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}
