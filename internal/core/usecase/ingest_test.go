package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
)

type docRepoFake struct {
	created   *domain.Document
	createErr error
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.created = doc
	return f.createErr
}
func (f *docRepoFake) GetByID(context.Context, string) (*domain.Document, error) { return nil, nil }
func (f *docRepoFake) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}
func (f *docRepoFake) SetChunkCount(context.Context, string, int) error { return nil }

type storageFake struct {
	savedKey string
	saveErr  error
}

func (f *storageFake) Save(_ context.Context, key string, _ io.Reader) error {
	f.savedKey = key
	return f.saveErr
}
func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) { return nil, nil }

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, id string) error {
	f.published = append(f.published, id)
	return f.err
}
func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadHappyPath(t *testing.T) {
	repo := &docRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "Factura Enero.pdf", "application/pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	if doc.Filename != "Factura Enero.pdf" {
		t.Fatalf("original filename must be kept, got %s", doc.Filename)
	}
	if !strings.HasSuffix(storage.savedKey, "_Factura_Enero.pdf") {
		t.Fatalf("unexpected storage key %s", storage.savedKey)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("ingestion event not published: %v", queue.published)
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatalf("document metadata not persisted")
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	uc := NewIngestDocumentUseCase(&docRepoFake{}, &storageFake{}, &queueFake{})

	for _, name := range []string{"virus.exe", "data.csv", "noextension", ""} {
		_, err := uc.Upload(context.Background(), name, "application/octet-stream", strings.NewReader("x"))
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Errorf("Upload(%q): expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestUploadAcceptsTextFormats(t *testing.T) {
	for _, name := range []string{"notes.md", "readme.MARKDOWN", "plain.txt"} {
		uc := NewIngestDocumentUseCase(&docRepoFake{}, &storageFake{}, &queueFake{})
		if _, err := uc.Upload(context.Background(), name, "text/plain", strings.NewReader("hola")); err != nil {
			t.Errorf("Upload(%q) error = %v", name, err)
		}
	}
}

func TestUploadStorageFailure(t *testing.T) {
	repo := &docRepoFake{}
	uc := NewIngestDocumentUseCase(repo, &storageFake{saveErr: errors.New("disk full")}, &queueFake{})

	if _, err := uc.Upload(context.Background(), "a.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error")
	}
	if repo.created != nil {
		t.Fatalf("metadata must not be written when storage fails")
	}
}

func TestUploadPublishFailure(t *testing.T) {
	uc := NewIngestDocumentUseCase(&docRepoFake{}, &storageFake{}, &queueFake{err: errors.New("nats down")})
	if _, err := uc.Upload(context.Background(), "a.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"informe final.pdf":    "informe_final.pdf",
		"../../etc/passwd":     "passwd",
		"año-2024 (v2).txt":    "a_o-2024__v2_.txt",
		"contrato_cliente.pdf": "contrato_cliente.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
