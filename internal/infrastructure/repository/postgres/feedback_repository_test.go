package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

func TestSaveFeedbackInsertsAllFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &FeedbackRepository{db: db}

	fb := &domain.Feedback{
		ID:        "fb-1",
		Question:  "¿total?",
		Source:    "factura.pdf",
		Answer:    "100",
		Rating:    4,
		Comment:   "bien",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO feedback").
		WithArgs("fb-1", "¿total?", "factura.pdf", "100", 4, "bien", fb.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveFeedback(context.Background(), fb); err != nil {
		t.Fatalf("SaveFeedback() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveFeedbackPropagatesError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := &FeedbackRepository{db: db}

	mock.ExpectExec("INSERT INTO feedback").
		WillReturnError(errors.New("pg down"))

	if err := repo.SaveFeedback(context.Background(), &domain.Feedback{ID: "fb-1"}); err == nil {
		t.Fatalf("expected error")
	}
}
