package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/resilience"
)

// Client is the dense retrieval channel, backed by qdrant's HTTP API. Point
// ids reuse the chunk UIDs so the relational store and the vector index stay
// joinable.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     chunk.UID,
			Vector: vectors[i],
			Payload: map[string]any{
				"chunk_uid": chunk.UID,
				"doc_id":    doc.ID,
				"source":    chunk.Source,
				"page":      chunk.Page,
				"position":  i,
				"text":      chunk.Text,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.execute(ctx, "qdrant_upsert", func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodPut, url, body)
		if err != nil {
			return fmt.Errorf("qdrant upsert request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError("qdrant upsert", resp)
		}
		return nil
	})
}

func (c *Client) Search(ctx context.Context, queryVector []float32, k int) ([]ports.Hit, error) {
	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": []string{"chunk_uid"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)

	var hits []ports.Hit
	err = c.execute(ctx, "qdrant_search", func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodPost, url, body)
		if err != nil {
			return fmt.Errorf("qdrant search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError("qdrant search", resp)
		}

		var searchResp struct {
			Result []struct {
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}

		hits = hits[:0]
		for _, r := range searchResp.Result {
			uid := getStringPayload(r.Payload, "chunk_uid")
			if uid == "" {
				continue
			}
			hits = append(hits, ports.Hit{ChunkUID: uid, Score: r.Score})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError("qdrant ensure collection", resp)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyError)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return &httpStatusError{operation: operation, status: resp.StatusCode, message: fmt.Sprintf("%s: %s", resp.Status, msg)}
	}
	return &httpStatusError{operation: operation, status: resp.StatusCode, message: resp.Status}
}

type httpStatusError struct {
	operation string
	status    int
	message   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s status: %s", e.operation, e.message)
}

// classifyError retries transport failures and 5xx; 4xx means the request
// itself is wrong and repeating it cannot help.
func classifyError(err error) resilience.ErrorClassification {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.status >= 400 && statusErr.status < 500 {
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
