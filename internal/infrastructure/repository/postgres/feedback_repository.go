package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) SaveFeedback(ctx context.Context, fb *domain.Feedback) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback (id, question, source, answer, rating, comment, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, fb.ID, fb.Question, fb.Source, fb.Answer, fb.Rating, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
