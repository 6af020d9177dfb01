package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
)

// SearchStore is the chunk index: pgvector cosine search, Postgres full-text
// search over the same rows, id hydration, and chunk (re)indexing. One table
// backs both retrieval signals so they can never drift apart.
type SearchStore struct {
	db        *sql.DB
	dimension int
}

func NewSearchStore(db *sql.DB, dimension int) *SearchStore {
	if dimension <= 0 {
		dimension = 768
	}
	return &SearchStore{db: db, dimension: dimension}
}

func (s *SearchStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082602)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	locator TEXT NOT NULL DEFAULT '',
	embedding vector(%d),
	tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', text)) STORED
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_tsv ON chunks USING GIN(tsv);
`, s.dimension)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *SearchStore) SearchVector(ctx context.Context, queryVector []float32, k int) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, 1 - (embedding <=> $1::vector) AS score
FROM chunks
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1::vector
LIMIT $2
`, vectorLiteral(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var cand domain.Candidate
		if err := rows.Scan(&cand.ChunkID, &cand.VectorScore); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search rows: %w", err)
	}
	return out, nil
}

func (s *SearchStore) SearchLexical(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts_rank(tsv, plainto_tsquery('simple', $1)) AS score
FROM chunks
WHERE tsv @@ plainto_tsquery('simple', $1)
ORDER BY score DESC
LIMIT $2
`, query, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var cand domain.Candidate
		if err := rows.Scan(&cand.ChunkID, &cand.LexicalScore); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical search rows: %w", err)
	}
	return out, nil
}

func (s *SearchStore) Resolve(ctx context.Context, chunkIDs []string) ([]domain.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT c.id, c.document_id, c.text, c.chunk_index, c.locator, d.file_name, d.link, d.mime_type
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.id IN (%s)
`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.ChunkIndex,
			&chunk.Locator, &chunk.FileName, &chunk.Link, &chunk.MimeType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve rows: %w", err)
	}
	return out, nil
}

// IndexChunks replaces every chunk row of the document inside one
// transaction, so reprocessing can never leave a mix of old and new chunks.
func (s *SearchStore) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	for i, text := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, chunk_index, text, locator, embedding)
VALUES ($1, $2, $3, $4, $5, $6::vector)
`,
			fmt.Sprintf("%s:%d", doc.ID, i), doc.ID, i, text,
			fmt.Sprintf("chunk %d", i+1), vectorLiteral(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index tx: %w", err)
	}
	return nil
}

// vectorLiteral renders a float32 slice in pgvector input syntax.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
