package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

// rerankChunks reorders candidates by cross-encoder relevance to the query
// and returns at most topK of them with Score replaced by the relevance
// score. A failing scorer degrades to the first topK candidates in their
// incoming order: rerank failure trusts the fused order, it never empties
// the result and never surfaces to the caller.
func rerankChunks(ctx context.Context, reranker ports.Reranker, query string, chunks []domain.Chunk, topK int) []domain.Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	if topK <= 0 || topK > len(chunks) {
		topK = len(chunks)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	scores, err := reranker.Score(ctx, query, texts)
	if err == nil && len(scores) != len(chunks) {
		err = fmt.Errorf("score count mismatch: %d/%d", len(scores), len(chunks))
	}
	if err != nil {
		slog.Warn("rerank_degraded", "error", domain.WrapError(domain.ErrRerank, "cross-encoder score", err), "candidates", len(chunks))
		out := make([]domain.Chunk, topK)
		copy(out, chunks[:topK])
		return out
	}

	scored := make([]domain.Chunk, len(chunks))
	copy(scored, chunks)
	for i := range scored {
		scored[i].Score = scores[i]
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored[:topK]
}
