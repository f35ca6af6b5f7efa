package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{UID: "uid-1", Text: "a", Source: "a.txt", Page: 1},
		{UID: "uid-2", Text: "b", Source: "a.txt", Page: 1},
	}
}

func TestIndexChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexChunks(context.Background(), doc, testChunks(), vectors); err != nil {
		t.Fatalf("first IndexChunks() error = %v", err)
	}
	if err := client.IndexChunks(context.Background(), doc, testChunks(), vectors); err != nil {
		t.Fatalf("second IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexChunksUsesChunkUIDAsPointID(t *testing.T) {
	var upsert struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	err := client.IndexChunks(context.Background(), doc, testChunks(), [][]float32{{0.1}, {0.2}})
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}

	if len(upsert.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(upsert.Points))
	}
	if upsert.Points[0].ID != "uid-1" || upsert.Points[1].ID != "uid-2" {
		t.Fatalf("point ids must reuse chunk uids: %+v", upsert.Points)
	}
	if upsert.Points[0].Payload["chunk_uid"] != "uid-1" {
		t.Fatalf("payload missing chunk_uid: %+v", upsert.Points[0].Payload)
	}
	if upsert.Points[0].Payload["source"] != "a.txt" {
		t.Fatalf("payload missing source: %+v", upsert.Points[0].Payload)
	}
}

func TestSearchReturnsHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/search" {
			_, _ = w.Write([]byte(`{"result":[
				{"score":0.91,"payload":{"chunk_uid":"uid-2"}},
				{"score":0.55,"payload":{"chunk_uid":"uid-1"}},
				{"score":0.10,"payload":{}}
			]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("payload-less point must be skipped, got %d hits", len(hits))
	}
	if hits[0].ChunkUID != "uid-2" || hits[0].Score != 0.91 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	err := client.IndexChunks(context.Background(), doc, testChunks()[:1], [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
