package ports

import (
	"context"
	"io"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
)

// AskOptions controls one single-pass ask request. TopK <= 0 enables the
// query-complexity estimator.
type AskOptions struct {
	TopK       int
	MultiQuery bool
	HyDE       bool
}

// QuestionService is the inbound contract for answer generation.
type QuestionService interface {
	Ask(ctx context.Context, query string, opts AskOptions) (*domain.Answer, error)
	AskIterative(ctx context.Context, query string) (*domain.IterativeResult, error)
	Research(ctx context.Context, query string) (*domain.ResearchResult, error)
}

// SearchService is the inbound contract for retrieval without generation.
type SearchService interface {
	Search(ctx context.Context, query string, k int) ([]domain.Chunk, error)
	DocumentSearch(ctx context.Context, query string, maxChunks, topDocs int) ([]domain.DocumentAggregate, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}
