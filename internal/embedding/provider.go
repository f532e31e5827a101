package embedding

import (
	"fmt"

	"github.com/hindsight-ai/hindsight/internal/domain"
)

// Provider constants
const (
	ProviderTEI  = "tei"
	ProviderMock = "mock"
)

// DefaultModel is the embedding model the default runtime serves.
const DefaultModel = "BAAI/bge-small-en-v1.5"

// DefaultDimension is the vector width DefaultModel produces, enforced at
// runtime.
const DefaultDimension = 384

// NewClient creates an embedding client based on the provider name.
// Returns an error if the provider is unknown or the URL is empty (except
// for mock).
func NewClient(provider, url, apiKey string, dimension int) (domain.EmbeddingClient, error) {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	switch provider {
	case ProviderTEI:
		if url == "" {
			return nil, fmt.Errorf("HINDSIGHT_TEI_EMBED_URL is required for the TEI embedding provider")
		}
		return NewTEIClient(url, apiKey, DefaultModel, dimension), nil

	case ProviderMock:
		return NewMockClient(dimension), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: tei, mock)", provider)
	}
}
