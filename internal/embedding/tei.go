package embedding

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

// TEIClient talks to a text-embeddings-inference style service:
// POST {url}/embed with {"inputs": [...]} returning one vector per input.
type TEIClient struct {
	url        string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

func NewTEIClient(url, apiKey, model string, dimension int) *TEIClient {
	return &TEIClient{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{},
	}
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

func (c *TEIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *TEIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	endpoint := c.url + "/embed"

	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ExternalError{Endpoint: endpoint, Model: c.model, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ExternalError{Endpoint: endpoint, Model: c.model, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &domain.ExternalError{
			Endpoint: endpoint,
			Model:    c.model,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var vecs [][]float32
	if err := json.Unmarshal(respBody, &vecs); err != nil {
		return nil, &domain.ExternalError{Endpoint: endpoint, Model: c.model, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if len(vecs) != len(texts) {
		return nil, &domain.ExternalError{
			Endpoint: endpoint,
			Model:    c.model,
			Err:      fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs)),
		}
	}
	for i, v := range vecs {
		if len(v) != c.dimension {
			return nil, &domain.ExternalError{
				Endpoint: endpoint,
				Model:    c.model,
				Err:      fmt.Errorf("vector %d has dimension %d, configured dimension is %d", i, len(v), c.dimension),
			}
		}
	}

	return vecs, nil
}
