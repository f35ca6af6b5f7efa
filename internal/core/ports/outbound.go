package ports

import (
	"context"
	"io"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

// Hit is one retrieval-channel result. Chunk UIDs are resolved against the
// current corpus snapshot by the search use case; hits for chunks unknown to
// the snapshot are dropped.
type Hit struct {
	ChunkUID string
	Score    float64
}

// VectorIndex performs dense nearest-neighbour search over chunk embeddings.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, k int) ([]Hit, error)
}

// LexicalIndex performs sparse term-frequency (BM25) search over chunk text.
type LexicalIndex interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// CorpusReader exposes the current immutable corpus snapshot.
type CorpusReader interface {
	Corpus(ctx context.Context) (*domain.Corpus, error)
}

// CrossEncoder scores (query, passage) pairs with a relevance model. Scores
// align with the passages slice; only relative order within one call matters.
type CrossEncoder interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// TokenCounter approximates token counts for the target generator's
// vocabulary.
type TokenCounter interface {
	CountTokens(text string) int
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GenerationOptions carry per-request decoding controls.
type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// AnswerGenerator creates the final user-facing answer from a fully
// assembled prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// ChunkRepository persists indexed chunks; ListChunks feeds the corpus
// snapshot in a stable order.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error
	ListChunks(ctx context.Context) ([]domain.Chunk, error)
}

// FeedbackStore persists answer ratings.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb *domain.Feedback) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts text pages from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

// Chunker splits one page of text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// AnswerCache caches generated answers keyed by (question, source).
type AnswerCache interface {
	Get(question, source string) (*domain.Answer, bool)
	Set(question, source string, answer *domain.Answer)
}
