package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

func TestGeneratorPassesDecodingOptions(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  ok  "}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen-model", "embed-model", nil))
	text, err := gen.Generate(context.Background(), "[INST] hola [/INST]", ports.GenerationOptions{
		Temperature: 0.7,
		MaxTokens:   128,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "ok" {
		t.Fatalf("response not trimmed: %q", text)
	}

	if payload["model"] != "gen-model" || payload["stream"] != false {
		t.Fatalf("unexpected request payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["temperature"] != 0.7 || options["num_predict"] != float64(128) {
		t.Fatalf("decoding options not forwarded: %v", options)
	}
}

func TestEmbedMismatchedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("502 should be tagged temporary, got %v", err)
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.6]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	vec, err := embedder.EmbedQuery(context.Background(), "hola")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestTokenCounterHeuristic(t *testing.T) {
	counter := TokenCounter{}
	if got := counter.CountTokens(""); got != 0 {
		t.Fatalf("empty text should count 0, got %d", got)
	}
	// 7 words / 0.7 = 10, plus safety 1.
	if got := counter.CountTokens("uno dos tres cuatro cinco seis siete"); got != 11 {
		t.Fatalf("expected 11 tokens, got %d", got)
	}
	if counter.CountTokens("palabra") <= 1 {
		t.Fatalf("single word must still overshoot")
	}
}
