package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

// HybridRetriever combines vector similarity search with full-text search,
// merges the two rankings with reciprocal rank fusion, and hydrates the
// surviving chunk ids into full records.
type HybridRetriever struct {
	embedder ports.Embedder
	vector   ports.VectorSearcher
	lexical  ports.LexicalSearcher
	resolver ports.ChunkResolver
	rrfK     int
}

func NewHybridRetriever(
	embedder ports.Embedder,
	vector ports.VectorSearcher,
	lexical ports.LexicalSearcher,
	resolver ports.ChunkResolver,
	rrfK int,
) *HybridRetriever {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}
	return &HybridRetriever{
		embedder: embedder,
		vector:   vector,
		lexical:  lexical,
		resolver: resolver,
		rrfK:     rrfK,
	}
}

// Search runs both backends with 2x overfetch, fuses to topK, and resolves
// the survivors. A failing backend degrades to an empty contribution; a
// failing resolve degrades to an empty result. Only an embedding failure
// propagates, because without a query vector no hybrid search can be formed.
func (r *HybridRetriever) Search(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if topK <= 0 {
		topK = 8
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectorHits := r.searchVector(ctx, queryVector, 2*topK)
	lexicalHits := r.searchLexical(ctx, query, 2*topK)

	fused := fuseRanksRRF(vectorHits, lexicalHits, r.rrfK, topK)
	return r.resolve(ctx, fused), nil
}

// DocumentSearch retrieves up to maxChunks fused candidates without early
// truncation, groups resolved chunks by parent document, and ranks the
// groups by their best chunk score. topDocs <= 0 returns every matched
// document. Unlike Search, an embedding failure here degrades to
// lexical-only ranking because a broad document sweep is still useful
// without the vector signal.
func (r *HybridRetriever) DocumentSearch(ctx context.Context, query string, maxChunks, topDocs int) ([]domain.DocumentAggregate, error) {
	if maxChunks <= 0 {
		maxChunks = 1000
	}

	var vectorHits []domain.Candidate
	if queryVector, err := r.embedder.EmbedQuery(ctx, query); err != nil {
		slog.Warn("document_search_embed_degraded", "error", err)
	} else {
		vectorHits = r.searchVector(ctx, queryVector, maxChunks)
	}
	lexicalHits := r.searchLexical(ctx, query, maxChunks)

	fused := fuseRanksRRF(vectorHits, lexicalHits, r.rrfK, maxChunks)
	chunks := r.resolve(ctx, fused)

	groups := make(map[string]*domain.DocumentAggregate, len(chunks))
	order := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.DocumentID == "" {
			continue
		}
		agg, ok := groups[chunk.DocumentID]
		if !ok {
			agg = &domain.DocumentAggregate{
				DocumentID: chunk.DocumentID,
				FileName:   chunk.FileName,
				Link:       chunk.Link,
				BestScore:  chunk.Score,
			}
			groups[chunk.DocumentID] = agg
			order = append(order, chunk.DocumentID)
		}
		agg.MatchedChunks = append(agg.MatchedChunks, chunk)
		if chunk.Score > agg.BestScore {
			agg.BestScore = chunk.Score
		}
	}

	out := make([]domain.DocumentAggregate, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BestScore > out[j].BestScore
	})

	if topDocs > 0 && len(out) > topDocs {
		out = out[:topDocs]
	}
	return out, nil
}

func (r *HybridRetriever) searchVector(ctx context.Context, queryVector []float32, k int) []domain.Candidate {
	hits, err := r.vector.SearchVector(ctx, queryVector, k)
	if err != nil {
		slog.Warn("vector_search_degraded", "error", domain.WrapError(domain.ErrRetrievalBackend, "vector search", err))
		return nil
	}
	return hits
}

func (r *HybridRetriever) searchLexical(ctx context.Context, query string, k int) []domain.Candidate {
	hits, err := r.lexical.SearchLexical(ctx, query, k)
	if err != nil {
		slog.Warn("lexical_search_degraded", "error", domain.WrapError(domain.ErrRetrievalBackend, "lexical search", err))
		return nil
	}
	return hits
}

// resolve hydrates fused candidates in fused order, carrying the fused score
// onto each chunk. Ids the resolver no longer knows are dropped, so the
// result may be shorter than the fused list.
func (r *HybridRetriever) resolve(ctx context.Context, fused []domain.Candidate) []domain.Chunk {
	if len(fused) == 0 {
		return nil
	}

	ids := make([]string, 0, len(fused))
	for _, cand := range fused {
		ids = append(ids, cand.ChunkID)
	}

	resolved, err := r.resolver.Resolve(ctx, ids)
	if err != nil {
		slog.Warn("chunk_resolve_degraded", "error", domain.WrapError(domain.ErrResolve, "resolve chunks", err))
		return nil
	}

	byID := make(map[string]domain.Chunk, len(resolved))
	for _, chunk := range resolved {
		byID[chunk.ID] = chunk
	}

	out := make([]domain.Chunk, 0, len(fused))
	for _, cand := range fused {
		chunk, ok := byID[cand.ChunkID]
		if !ok {
			continue
		}
		chunk.Score = cand.FusedScore
		out = append(out, chunk)
	}
	return out
}
