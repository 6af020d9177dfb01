package ports

import (
	"context"
	"io"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
)

// VectorSearcher returns the k nearest chunks to a query embedding, best
// first, with cosine similarity as VectorScore.
type VectorSearcher interface {
	SearchVector(ctx context.Context, queryVector []float32, k int) ([]domain.Candidate, error)
}

// LexicalSearcher returns the k best full-text matches for a raw query, best
// first, with the rank score as LexicalScore.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

// ChunkResolver hydrates chunk ids into full chunk records with parent
// document metadata. Ids that no longer exist are omitted from the result.
type ChunkResolver interface {
	Resolve(ctx context.Context, chunkIDs []string) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores query-document pairs with a cross-encoder model. The
// returned slice is positional: scores[i] belongs to texts[i].
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Generator is the LLM completion contract. maxTokens <= 0 means the
// provider default; systemMessage may be empty.
type Generator interface {
	Complete(ctx context.Context, prompt string, maxTokens int, systemMessage string) (string, error)
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ChunkIndexer stores chunk text, embeddings, and full-text index rows for
// one document.
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
