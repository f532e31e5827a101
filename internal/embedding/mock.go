package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockClient produces deterministic pseudo-embeddings derived from the text.
// Identical texts embed identically; different texts are very unlikely to
// collide.
type MockClient struct {
	dimension int

	// Call tracking for assertions
	EmbedCalls      []string
	EmbedBatchCalls [][]string
}

func NewMockClient(dimension int) *MockClient {
	return &MockClient{dimension: dimension}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	return c.vector(text), nil
}

func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.EmbedBatchCalls = append(c.EmbedBatchCalls, texts)
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = c.vector(t)
	}
	return vecs, nil
}

func (c *MockClient) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, c.dimension)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		// Centered in [-1, 1) so unrelated texts land near zero cosine.
		v := float64(seed>>11)/float64(1<<52) - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
