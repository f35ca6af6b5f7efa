package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/extractor/pdfdoc"
	"github.com/avmoreno/corpus-qa/internal/infrastructure/extractor/plaintext"
)

// Dispatcher routes a document to the extractor for its file type.
type Dispatcher struct {
	pdf  ports.TextExtractor
	text ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		pdf:  pdfdoc.NewExtractor(storage),
		text: plaintext.NewExtractor(storage),
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return d.pdf.Extract(ctx, doc)
	case ".txt", ".md", ".markdown":
		return d.text.Extract(ctx, doc)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract",
			fmt.Errorf("unsupported file type: %s", doc.Filename))
	}
}
