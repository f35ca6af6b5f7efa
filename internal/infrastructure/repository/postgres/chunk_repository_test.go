package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

func newChunkRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestReplaceChunksDeletesThenInsertsInOneTx(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	doc := &domain.Document{ID: "doc-1", Filename: "a.pdf"}
	chunks := []domain.Chunk{
		{UID: "u1", Text: "uno", Source: "a.pdf", Page: 1},
		{UID: "u2", Text: "dos", Source: "a.pdf", Page: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM corpus_chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO corpus_chunks").
		WithArgs("u1", "doc-1", "a.pdf", 1, 0, "uno", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO corpus_chunks").
		WithArgs("u2", "doc-1", "a.pdf", 2, 1, "dos", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceChunks(context.Background(), doc, chunks); err != nil {
		t.Fatalf("ReplaceChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceChunksRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	doc := &domain.Document{ID: "doc-1"}
	chunks := []domain.Chunk{{UID: "u1", Text: "uno", Source: "a.pdf"}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM corpus_chunks").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO corpus_chunks").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	if err := repo.ReplaceChunks(context.Background(), doc, chunks); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListChunksStableOrder(t *testing.T) {
	repo, mock, done := newChunkRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"uid", "source", "page", "text"}).
		AddRow("u1", "a.pdf", 1, "uno").
		AddRow("u2", "a.pdf", 2, "dos").
		AddRow("u3", "b.pdf", 1, "tres")

	mock.ExpectQuery("SELECT uid, source, page, text").WillReturnRows(rows)

	chunks, err := repo.ListChunks(context.Background())
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].UID != "u1" || chunks[2].Source != "b.pdf" {
		t.Fatalf("unexpected chunk order: %+v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
