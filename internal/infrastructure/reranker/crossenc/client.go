package crossenc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avmoreno/corpus-qa/internal/infrastructure/resilience"
)

// Client scores (query, passage) pairs against an HTTP reranker endpoint
// (text-embeddings-inference / infinity style /rerank API).
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns one relevance score per passage, in passage order.
func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank body: %w", err)
	}

	var scores []float64
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &statusError{status: resp.StatusCode, message: strings.TrimSpace(string(raw))}
		}

		var decoded rerankResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		if len(decoded.Results) != len(passages) {
			return fmt.Errorf("rerank returned %d scores for %d passages", len(decoded.Results), len(passages))
		}

		scores = make([]float64, len(passages))
		for _, r := range decoded.Results {
			if r.Index < 0 || r.Index >= len(scores) {
				return fmt.Errorf("rerank result index %d out of range", r.Index)
			}
			scores[r.Index] = r.Score
		}
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "rerank", call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return scores, nil
}

type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("rerank status %d", e.status)
	}
	return fmt.Sprintf("rerank status %d: %s", e.status, e.message)
}

func classifyError(err error) resilience.ErrorClassification {
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.status >= 400 && statusErr.status < 500 {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
