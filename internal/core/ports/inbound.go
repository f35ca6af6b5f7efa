package ports

import (
	"context"
	"io"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing (extract, chunk, embed, index).
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// PassageSearcher is the inbound contract for the retrieval/rerank pipeline.
type PassageSearcher interface {
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error)
}

// QuestionAnswerer runs the full ask flow: retrieve, budget, generate.
type QuestionAnswerer interface {
	Ask(ctx context.Context, req AskRequest) (*domain.Answer, error)
}

// AskRequest is the ask-flow input. A nil Temperature means "classify from
// the question"; an explicit value always wins.
type AskRequest struct {
	Question    string
	Source      string
	TopK        int
	Diversify   bool
	Temperature *float64
}
