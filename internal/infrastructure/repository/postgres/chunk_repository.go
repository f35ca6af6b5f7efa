package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceChunks swaps a document's chunks atomically: re-processing a
// document never leaves a mix of old and new chunks behind.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	now := time.Now().UTC()
	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO corpus_chunks (uid, document_id, source, page, position, text, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, chunk.UID, doc.ID, chunk.Source, chunk.Page, i, chunk.Text, now)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

// ListChunks returns every indexed chunk in a stable order. The corpus
// snapshot derives chunk ids from this order, so it must not change between
// reads of the same data.
func (r *ChunkRepository) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT uid, source, page, text
FROM corpus_chunks
ORDER BY document_id, position
`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		if err := rows.Scan(&chunk.UID, &chunk.Source, &chunk.Page, &chunk.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}
