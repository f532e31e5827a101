package llm

import (
	"context"

	"github.com/hindsight-ai/hindsight/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	ExtractFactsResponse []domain.Fact
	ExtractFactsError    error
	GenerateGistResponse string
	GenerateGistError    error

	// Call tracking for assertions
	ExtractFactsCalls []string
	GenerateGistCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		ExtractFactsResponse: []domain.Fact{},
		GenerateGistResponse: "Mock gist",
	}
}

func (c *MockClient) ExtractFacts(ctx context.Context, content string, mode domain.ExtractionMode, guidelines string) ([]domain.Fact, error) {
	c.ExtractFactsCalls = append(c.ExtractFactsCalls, content)
	if c.ExtractFactsError != nil {
		return nil, c.ExtractFactsError
	}
	return c.ExtractFactsResponse, nil
}

func (c *MockClient) GenerateGist(ctx context.Context, content string) (string, error) {
	c.GenerateGistCalls = append(c.GenerateGistCalls, content)
	if c.GenerateGistError != nil {
		return "", c.GenerateGistError
	}
	return c.GenerateGistResponse, nil
}
