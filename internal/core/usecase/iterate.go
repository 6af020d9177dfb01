package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

// IterativeAgentUseCase drives repeated retrieve -> fuse/dedupe -> rerank ->
// assess -> refine cycles until one of the stop conditions fires, then
// synthesizes a final answer from everything accumulated.
//
// The source accumulator only ever grows within one run: the first resolved
// record for a chunk id wins and is never overwritten, so result quality is
// monotonically non-decreasing in iteration count.
type IterativeAgentUseCase struct {
	retriever *HybridRetriever
	reranker  ports.Reranker
	generator ports.Generator
	assessor  *CompletenessAssessor
	refiner   *QueryRefiner
	limits    domain.AgentLimits
}

func NewIterativeAgentUseCase(
	retriever *HybridRetriever,
	reranker ports.Reranker,
	generator ports.Generator,
	limits domain.AgentLimits,
) *IterativeAgentUseCase {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 5
	}
	if limits.ConfidenceThreshold <= 0 {
		limits.ConfidenceThreshold = 0.85
	}
	if limits.MaxSources <= 0 {
		limits.MaxSources = 100
	}
	if limits.InitialCandidates <= 0 {
		limits.InitialCandidates = 100
	}

	return &IterativeAgentUseCase{
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		assessor:  NewCompletenessAssessor(generator),
		refiner:   NewQueryRefiner(generator),
		limits:    limits,
	}
}

// sourceAccumulator is the per-run dedup map plus insertion order. Values
// are never overwritten once inserted.
type sourceAccumulator struct {
	byID  map[string]domain.Chunk
	order []string
}

func newSourceAccumulator(capacity int) *sourceAccumulator {
	return &sourceAccumulator{byID: make(map[string]domain.Chunk, capacity)}
}

// add inserts chunks whose id has not been seen yet and reports how many
// were new.
func (acc *sourceAccumulator) add(chunks []domain.Chunk) int {
	added := 0
	for _, chunk := range chunks {
		if chunk.ID == "" {
			continue
		}
		if _, seen := acc.byID[chunk.ID]; seen {
			continue
		}
		acc.byID[chunk.ID] = chunk
		acc.order = append(acc.order, chunk.ID)
		added++
	}
	return added
}

func (acc *sourceAccumulator) len() int { return len(acc.byID) }

// chunks returns the accumulated chunks in insertion order.
func (acc *sourceAccumulator) chunks() []domain.Chunk {
	out := make([]domain.Chunk, 0, len(acc.order))
	for _, id := range acc.order {
		out = append(out, acc.byID[id])
	}
	return out
}

// Run executes the iterative search for query. The caller's context deadline
// is the wall-clock bound: when it expires mid-loop the run exits to
// reporting with whatever has been accumulated instead of failing.
func (uc *IterativeAgentUseCase) Run(ctx context.Context, query string) (*domain.IterativeResult, error) {
	start := time.Now()

	loopCtx := ctx
	if uc.limits.Timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, uc.limits.Timeout)
		defer cancel()
	}

	accumulator := newSourceAccumulator(uc.limits.MaxSources)
	iterations := make([]domain.SearchIteration, 0, uc.limits.MaxIterations)
	var reranked []domain.Chunk
	currentQuery := query

	for iteration := 1; iteration <= uc.limits.MaxIterations; iteration++ {
		if loopCtx.Err() != nil {
			slog.Warn("iterative_deadline_exceeded", "iteration", iteration, "sources", accumulator.len())
			break
		}

		candidates, err := uc.retriever.Search(loopCtx, currentQuery, uc.limits.InitialCandidates)
		if err != nil {
			if len(iterations) == 0 && accumulator.len() == 0 {
				return nil, err
			}
			slog.Warn("iterative_search_degraded", "iteration", iteration, "error", err)
		}

		added := accumulator.add(candidates)
		slog.Info("iterative_search",
			"iteration", iteration,
			"query", currentQuery,
			"new_sources", added,
			"total_sources", accumulator.len(),
		)

		// The whole accumulator is reranked against the original query so
		// earlier finds can surface once later context arrives.
		rerankCap := uc.limits.MaxSources
		if accumulator.len() < rerankCap {
			rerankCap = accumulator.len()
		}
		reranked = rerankChunks(loopCtx, uc.reranker, query, accumulator.chunks(), rerankCap)

		assessment := uc.assessor.Assess(loopCtx, query, reranked, iteration)
		iterations = append(iterations, domain.SearchIteration{
			Iteration:   iteration,
			Query:       currentQuery,
			NumResults:  len(reranked),
			Assessment:  assessment.Text,
			Confidence:  assessment.Confidence,
			MissingInfo: assessment.MissingInfo,
		})

		if assessment.Confidence >= uc.limits.ConfidenceThreshold {
			slog.Info("iterative_satisfied", "iteration", iteration, "confidence", assessment.Confidence)
			break
		}
		if accumulator.len() >= uc.limits.MaxSources {
			slog.Info("iterative_source_limit", "sources", accumulator.len())
			break
		}
		if iteration >= uc.limits.MaxIterations {
			slog.Info("iterative_iteration_limit", "iterations", iteration)
			break
		}

		currentQuery = uc.refiner.Next(loopCtx, query, assessment.MissingInfo, iteration)
	}

	answer := uc.generateComprehensiveAnswer(ctx, query, reranked, iterations)

	sources := make([]domain.Source, 0, len(reranked))
	for _, chunk := range reranked {
		sources = append(sources, domain.SourceFromChunk(chunk))
	}

	finalConfidence := 0.0
	if len(iterations) > 0 {
		finalConfidence = iterations[len(iterations)-1].Confidence
	}

	return &domain.IterativeResult{
		Answer:          answer,
		Sources:         sources,
		Iterations:      iterations,
		TotalSources:    len(reranked),
		TotalIterations: len(iterations),
		FinalConfidence: finalConfidence,
		LatencyMS:       time.Since(start).Milliseconds(),
	}, nil
}

// generateComprehensiveAnswer synthesizes the final report. A generation
// failure degrades to an explanatory answer body instead of an error, so
// the accumulated sources and iteration log still reach the caller.
func (uc *IterativeAgentUseCase) generateComprehensiveAnswer(
	ctx context.Context,
	query string,
	sources []domain.Chunk,
	iterations []domain.SearchIteration,
) string {
	if len(sources) == 0 {
		slog.Info("iterative_no_results", "error", domain.WrapError(domain.ErrNoResults, "comprehensive answer", errNoCandidates), "query", query)
		return "I could not find relevant information for the question."
	}

	system, user := buildComprehensiveAnswerPrompts(query, sources, iterations)
	answer, err := uc.generator.Complete(ctx, user, 2000, system)
	if err != nil {
		slog.Error("iterative_answer_degraded", "error", domain.WrapError(domain.ErrGeneration, "comprehensive answer", err))
		return "The answer could not be generated because the language model is unavailable. " +
			"The sources listed below were collected for the question; please retry shortly."
	}
	return answer
}
