package crossenc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScoreAlignsResultsByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "pregunta" || len(req.Documents) != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		// Results arrive sorted by relevance, not document order.
		_, _ = w.Write([]byte(`{"results":[
			{"index":2,"relevance_score":0.9},
			{"index":0,"relevance_score":0.5},
			{"index":1,"relevance_score":0.1}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker", nil)
	scores, err := client.Score(context.Background(), "pregunta", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	want := []float64{0.5, 0.1, 0.9}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("scores = %v, want %v", scores, want)
		}
	}
}

func TestScoreCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":0,"relevance_score":0.9}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker", nil)
	if _, err := client.Score(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestScoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "bge-reranker", nil)
	if _, err := client.Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScoreEmptyPassages(t *testing.T) {
	client := New("http://unused", "bge-reranker", nil)
	scores, err := client.Score(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil/nil for empty input, got %v/%v", scores, err)
	}
}
