package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/hindsight-ai/hindsight/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultModel is the cross-encoder the default runtime serves.
const DefaultModel = "BAAI/bge-reranker-base"

// TEIClient talks to a text-embeddings-inference style reranker:
// POST {url}/rerank with {query, texts, return_text:false} returning one
// score per text. Large candidate sets are split into batches dispatched
// concurrently; any batch failure fails the whole call.
type TEIClient struct {
	url           string
	apiKey        string
	model         string
	batchSize     int
	maxConcurrent int
	httpClient    *http.Client
}

func NewTEIClient(url, apiKey string, batchSize, maxConcurrent int) *TEIClient {
	if batchSize <= 0 {
		batchSize = 128
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &TEIClient{
		url:           strings.TrimRight(url, "/"),
		apiKey:        apiKey,
		model:         DefaultModel,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		httpClient:    &http.Client{},
	}
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Texts      []string `json:"texts"`
	ReturnText bool     `json:"return_text"`
}

type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// rerankResponse accepts both a bare array and a {results: [...]} wrapper.
type rerankResponse struct {
	Results []rerankEntry `json:"results"`
}

func (c *TEIClient) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	var mu sync.Mutex
	for start := 0; start < len(docs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		offset, batch := start, docs[start:end]
		g.Go(func() error {
			batchScores, err := c.rerankBatch(ctx, query, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			copy(scores[offset:], batchScores)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (c *TEIClient) rerankBatch(ctx context.Context, query string, docs []string) ([]float64, error) {
	endpoint := c.url + "/rerank"

	body, err := json.Marshal(rerankRequest{Query: query, Texts: docs, ReturnText: false})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
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

	entries, err := parseRerankBody(respBody)
	if err != nil {
		return nil, &domain.ExternalError{Endpoint: endpoint, Model: c.model, Err: err}
	}
	if len(entries) != len(docs) {
		return nil, &domain.ExternalError{
			Endpoint: endpoint,
			Model:    c.model,
			Err:      fmt.Errorf("expected %d scores, got %d", len(docs), len(entries)),
		}
	}

	// Entries may arrive sorted by score; restore input order by index.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	scores := make([]float64, len(entries))
	for i, e := range entries {
		if e.Index < 0 || e.Index >= len(docs) {
			return nil, &domain.ExternalError{
				Endpoint: endpoint,
				Model:    c.model,
				Err:      fmt.Errorf("score index %d out of range", e.Index),
			}
		}
		scores[i] = e.Score
	}
	return scores, nil
}

func parseRerankBody(body []byte) ([]rerankEntry, error) {
	var bare []rerankEntry
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	var wrapped rerankResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal rerank response: %w", err)
	}
	return wrapped.Results, nil
}
