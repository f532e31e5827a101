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
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
)

type OpenAIClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// chat types for OpenAI API
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.ExternalError{Endpoint: openAIChatURL, Model: chatModel, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.ExternalError{Endpoint: openAIChatURL, Model: chatModel, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.ExternalError{
			Endpoint: openAIChatURL,
			Model:    chatModel,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &domain.ExternalError{Endpoint: openAIChatURL, Model: chatModel, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if result.Error != nil {
		return "", &domain.ExternalError{Endpoint: openAIChatURL, Model: chatModel, Err: fmt.Errorf("API error: %s", result.Error.Message)}
	}

	if len(result.Choices) == 0 {
		return "", &domain.ExternalError{Endpoint: openAIChatURL, Model: chatModel, Err: fmt.Errorf("no choices returned")}
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) ExtractFacts(ctx context.Context, content string, mode domain.ExtractionMode, guidelines string) ([]domain.Fact, error) {
	prompt := fmt.Sprintf(extractPrompt, extractDirective(mode, guidelines), content)

	raw, err := c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0)
	if err != nil {
		return nil, err
	}

	var facts []domain.Fact
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &facts); err != nil {
		return nil, fmt.Errorf("parse extracted facts: %w", err)
	}
	return facts, nil
}

func (c *OpenAIClient) GenerateGist(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(gistPrompt, content)
	return c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0)
}
