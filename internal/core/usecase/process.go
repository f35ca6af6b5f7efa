package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
)

// ProcessDocumentUseCase runs the asynchronous half of ingestion: extract
// pages, chunk, embed, index into the vector store and the relational chunk
// table. The chunk table is the source of truth the corpus snapshot is built
// from, so both writes must land before the document is marked ready.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	chunkRepo ports.ChunkRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorIndex
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	chunkRepo ports.ChunkRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorIndex,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		chunkRepo: chunkRepo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, chunkCount, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SetChunkCount(ctx, doc.ID, chunkCount); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractPages(ctx, doc)
	if err != nil {
		return nil, 0, err
	}

	chunks, err := uc.chunkPages(doc, pages)
	if err != nil {
		return nil, 0, err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return nil, 0, err
	}

	if err := uc.vectorDB.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return nil, 0, fmt.Errorf("index chunks in vector db: %w", err)
	}

	if err := uc.chunkRepo.ReplaceChunks(ctx, doc, chunks); err != nil {
		return nil, 0, fmt.Errorf("persist chunks: %w", err)
	}

	return doc, len(chunks), nil
}

func (uc *ProcessDocumentUseCase) extractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	pages, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("no text extracted"))
	}
	return pages, nil
}

// chunkPages splits each extracted page independently so every chunk keeps
// its page number for citations.
func (uc *ProcessDocumentUseCase) chunkPages(doc *domain.Document, pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range pages {
		for _, text := range uc.chunker.Split(page.Text) {
			chunks = append(chunks, domain.Chunk{
				UID:    uuid.NewString(),
				Text:   text,
				Source: doc.Filename,
				Page:   page.Number,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
