package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

const (
	defaultCandidates    = 50
	exhaustiveCandidates = 100
	maxExpandedQueries   = 5
	noAnswerText         = "I could not find a reliable answer in the provided material."
)

var errNoCandidates = errors.New("no candidates survived retrieval")

// AskUseCase is the single-pass question pipeline: estimate topK, retrieve
// (optionally over an expanded query set), rerank against the original
// question and generate one grounded answer.
type AskUseCase struct {
	retriever *HybridRetriever
	reranker  ports.Reranker
	generator ports.Generator
}

func NewAskUseCase(retriever *HybridRetriever, reranker ports.Reranker, generator ports.Generator) *AskUseCase {
	return &AskUseCase{retriever: retriever, reranker: reranker, generator: generator}
}

func (uc *AskUseCase) Ask(ctx context.Context, query string, opts ports.AskOptions) (*domain.Answer, error) {
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = EstimateTopK(query)
	}
	candidates := defaultCandidates
	if IsExhaustiveQuery(query) {
		candidates = exhaustiveCandidates
	}

	queries := uc.expandQueries(ctx, query, opts)
	slog.Info("ask_retrieval", "query", query, "top_k", topK, "candidates", candidates, "queries", len(queries))

	// Dedup across query variants: first retrieval of a chunk wins.
	byID := make(map[string]struct{}, candidates)
	var pool []domain.Chunk
	for _, q := range queries {
		chunks, err := uc.retriever.Search(ctx, q, candidates)
		if err != nil {
			if q == query {
				return nil, err
			}
			slog.Warn("ask_variant_degraded", "variant", q, "error", err)
			continue
		}
		for _, chunk := range chunks {
			if _, seen := byID[chunk.ID]; seen {
				continue
			}
			byID[chunk.ID] = struct{}{}
			pool = append(pool, chunk)
		}
	}

	if len(pool) == 0 {
		slog.Info("ask_no_results", "error", domain.WrapError(domain.ErrNoResults, "ask", errNoCandidates), "query", query)
		return &domain.Answer{
			Text:      noAnswerText,
			Sources:   []domain.Source{},
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil
	}

	reranked := rerankChunks(ctx, uc.reranker, query, pool, topK)

	text, err := uc.generator.Complete(ctx,
		fmt.Sprintf("Question: %s", query),
		1000,
		fmt.Sprintf(answerSystemPrompt, buildAnswerContext(reranked)),
	)
	if err != nil {
		slog.Error("ask_generation_degraded", "error", domain.WrapError(domain.ErrGeneration, "ask", err))
		text = noAnswerText
	}

	sources := make([]domain.Source, 0, len(reranked))
	for _, chunk := range reranked {
		sources = append(sources, domain.SourceFromChunk(chunk))
	}

	return &domain.Answer{
		Text:      strings.TrimSpace(text),
		Sources:   sources,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// expandQueries returns the retrieval query set. The original question is
// always first; LLM failures silently fall back to the original alone.
func (uc *AskUseCase) expandQueries(ctx context.Context, query string, opts ports.AskOptions) []string {
	queries := []string{query}

	if opts.MultiQuery {
		raw, err := uc.generator.Complete(ctx, fmt.Sprintf(multiQueryPrompt, query), 300, "")
		if err != nil {
			slog.Warn("ask_multiquery_degraded", "error", err)
		} else {
			for _, line := range strings.Split(raw, "\n") {
				line = strings.TrimSpace(line)
				if line == "" || line == query {
					continue
				}
				queries = append(queries, line)
				if len(queries) >= maxExpandedQueries {
					break
				}
			}
		}
	}

	if opts.HyDE && len(queries) < maxExpandedQueries {
		raw, err := uc.generator.Complete(ctx, fmt.Sprintf(hydePrompt, query), 200, "")
		if err != nil {
			slog.Warn("ask_hyde_degraded", "error", err)
		} else if doc := strings.TrimSpace(raw); doc != "" {
			queries = append(queries, doc)
		}
	}

	return queries
}
