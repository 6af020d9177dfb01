package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/extractor/pdfdoc"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/extractor/plaintext"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/extractor/spreadsheet"
)

// Dispatcher routes a document to the extractor for its MIME type, falling
// back to the file extension when the upload carried a generic type.
type Dispatcher struct {
	plaintext   ports.TextExtractor
	pdf         ports.TextExtractor
	spreadsheet ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		plaintext:   plaintext.NewExtractor(storage),
		pdf:         pdfdoc.NewExtractor(storage),
		spreadsheet: spreadsheet.NewExtractor(storage),
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	target, err := d.pick(doc)
	if err != nil {
		return "", err
	}
	return target.Extract(ctx, doc)
}

func (d *Dispatcher) pick(doc *domain.Document) (ports.TextExtractor, error) {
	mime := strings.ToLower(doc.MimeType)
	switch {
	case mime == "application/pdf":
		return d.pdf, nil
	case mime == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mime == "application/vnd.ms-excel":
		return d.spreadsheet, nil
	case strings.HasPrefix(mime, "text/"),
		mime == "application/json",
		mime == "text/markdown":
		return d.plaintext, nil
	}

	switch strings.ToLower(filepath.Ext(doc.FileName)) {
	case ".pdf":
		return d.pdf, nil
	case ".xlsx", ".xlsm", ".xls":
		return d.spreadsheet, nil
	case ".txt", ".md", ".csv", ".json", ".log":
		return d.plaintext, nil
	}

	return nil, domain.WrapError(domain.ErrInvalidInput, "pick extractor",
		fmt.Errorf("unsupported document type %q (%s)", doc.MimeType, doc.FileName))
}
