package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hindsight-ai/hindsight/internal/domain"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-3-5-haiku-20241022"
	anthropicVersion     = "2023-06-01"
)

type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) complete(ctx context.Context, messages []anthropicMessage, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.ExternalError{Endpoint: anthropicMessagesURL, Model: anthropicModel, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.ExternalError{Endpoint: anthropicMessagesURL, Model: anthropicModel, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.ExternalError{
			Endpoint: anthropicMessagesURL,
			Model:    anthropicModel,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &domain.ExternalError{Endpoint: anthropicMessagesURL, Model: anthropicModel, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if result.Error != nil {
		return "", &domain.ExternalError{Endpoint: anthropicMessagesURL, Model: anthropicModel, Err: fmt.Errorf("API error: %s", result.Error.Message)}
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &domain.ExternalError{Endpoint: anthropicMessagesURL, Model: anthropicModel, Err: fmt.Errorf("no text content returned")}
	}

	return strings.TrimSpace(sb.String()), nil
}

func (c *AnthropicClient) ExtractFacts(ctx context.Context, content string, mode domain.ExtractionMode, guidelines string) ([]domain.Fact, error) {
	prompt := fmt.Sprintf(extractPrompt, extractDirective(mode, guidelines), content)

	raw, err := c.complete(ctx, []anthropicMessage{{Role: "user", Content: prompt}}, 2048)
	if err != nil {
		return nil, err
	}

	var facts []domain.Fact
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &facts); err != nil {
		return nil, fmt.Errorf("parse extracted facts: %w", err)
	}
	return facts, nil
}

func (c *AnthropicClient) GenerateGist(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(gistPrompt, content)
	return c.complete(ctx, []anthropicMessage{{Role: "user", Content: prompt}}, 512)
}
