package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

const (
	maxSubQuestions       = 5
	noSubAnswerText       = "No relevant information was found for this question."
	subQuestionSourcesCap = 5
)

// ResearchUseCase answers multi-step research queries in a single pass:
// decompose into sub-questions, answer each independently with one
// retrieve+rerank+generate round, then synthesize one report. There is no
// feedback loop; a failing sub-question degrades to a placeholder answer.
type ResearchUseCase struct {
	retriever  *HybridRetriever
	reranker   ports.Reranker
	generator  ports.Generator
	candidates int
}

func NewResearchUseCase(retriever *HybridRetriever, reranker ports.Reranker, generator ports.Generator, candidates int) *ResearchUseCase {
	if candidates <= 0 {
		candidates = 50
	}
	return &ResearchUseCase{
		retriever:  retriever,
		reranker:   reranker,
		generator:  generator,
		candidates: candidates,
	}
}

func (uc *ResearchUseCase) Research(ctx context.Context, query string) (*domain.ResearchResult, error) {
	start := time.Now()
	topK := EstimateTopK(query)

	subQuestions := uc.decompose(ctx, query)
	slog.Info("research_decomposed", "query", query, "sub_questions", len(subQuestions))

	// Shared dedup map across sub-questions: first occurrence of a chunk id
	// wins, later sub-questions only reference it.
	sourceMap := make(map[string]domain.Source, uc.candidates)
	sourceOrder := make([]string, 0, uc.candidates)
	steps := make([]domain.SubQuestionResult, 0, len(subQuestions))

	for i, subQ := range subQuestions {
		slog.Info("research_step", "step", i+1, "question", subQ)
		steps = append(steps, uc.answerSubQuestion(ctx, subQ, topK, sourceMap, &sourceOrder))
	}

	answer := uc.synthesize(ctx, query, steps, sourceMap)

	sources := make([]domain.Source, 0, len(sourceOrder))
	for _, id := range sourceOrder {
		sources = append(sources, sourceMap[id])
	}

	return &domain.ResearchResult{
		Query:           query,
		Answer:          answer,
		ResearchSteps:   steps,
		Sources:         sources,
		NumSubQuestions: len(subQuestions),
		LatencyMS:       time.Since(start).Milliseconds(),
	}, nil
}

// decompose asks the LLM for sub-questions as JSON. Parse failure falls back
// to extracting question-like lines from the raw text; if nothing usable
// remains, the original query is the only sub-question.
func (uc *ResearchUseCase) decompose(ctx context.Context, query string) []string {
	raw, err := uc.generator.Complete(ctx, buildDecomposePrompt(query), 500, "")
	if err != nil {
		slog.Warn("research_decompose_fallback", "error", err)
		return []string{query}
	}

	subQuestions := parseSubQuestionsJSON(raw)
	if len(subQuestions) == 0 {
		subQuestions = extractQuestionLines(raw)
	}
	if len(subQuestions) == 0 {
		subQuestions = []string{query}
	}
	if len(subQuestions) > maxSubQuestions {
		subQuestions = subQuestions[:maxSubQuestions]
	}
	return subQuestions
}

func parseSubQuestionsJSON(raw string) []string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}
	var parsed struct {
		SubQuestions []string `json:"sub_questions"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil
	}
	out := make([]string, 0, len(parsed.SubQuestions))
	for _, q := range parsed.SubQuestions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

// extractQuestionLines heuristically picks question-like lines: lines
// containing '?' or more than 3 words, excluding anything that looks like
// JSON or array syntax.
func extractQuestionLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "[") {
			continue
		}
		if strings.Contains(line, "?") || len(strings.Fields(line)) > 3 {
			out = append(out, line)
		}
	}
	return out
}

func (uc *ResearchUseCase) answerSubQuestion(
	ctx context.Context,
	question string,
	topK int,
	sourceMap map[string]domain.Source,
	sourceOrder *[]string,
) domain.SubQuestionResult {
	placeholder := domain.SubQuestionResult{
		Question:  question,
		Answer:    noSubAnswerText,
		SourceIDs: []string{},
	}

	candidates, err := uc.retriever.Search(ctx, question, uc.candidates)
	if err != nil || len(candidates) == 0 {
		if err != nil {
			slog.Warn("research_subquestion_degraded", "question", question, "error", err)
		}
		return placeholder
	}

	rerankTo := subQuestionSourcesCap
	if topK < rerankTo {
		rerankTo = topK
	}
	reranked := rerankChunks(ctx, uc.reranker, question, candidates, rerankTo)
	if len(reranked) == 0 {
		return placeholder
	}

	var contextText strings.Builder
	sourceIDs := make([]string, 0, len(reranked))
	for _, chunk := range reranked {
		fmt.Fprintf(&contextText, "[%s]: %s\n\n", chunk.FileName, chunk.Text)
		if _, seen := sourceMap[chunk.ID]; !seen {
			sourceMap[chunk.ID] = domain.SourceFromChunk(chunk)
			*sourceOrder = append(*sourceOrder, chunk.ID)
		}
		sourceIDs = append(sourceIDs, chunk.ID)
	}

	answer, err := uc.generator.Complete(ctx, buildSubAnswerPrompt(question, contextText.String()), 400, "")
	if err != nil {
		slog.Warn("research_subanswer_degraded", "question", question, "error", err)
		return domain.SubQuestionResult{Question: question, Answer: noSubAnswerText, SourceIDs: sourceIDs}
	}

	return domain.SubQuestionResult{
		Question:  question,
		Answer:    strings.TrimSpace(answer),
		SourceIDs: sourceIDs,
	}
}

// synthesize combines the sub-answers into one report with inline file-name
// citations. A generation failure degrades to the concatenated sub-answers.
func (uc *ResearchUseCase) synthesize(
	ctx context.Context,
	query string,
	steps []domain.SubQuestionResult,
	sourceMap map[string]domain.Source,
) string {
	var parts []string
	for i, step := range steps {
		var files []string
		seen := make(map[string]struct{}, len(step.SourceIDs))
		for _, id := range step.SourceIDs {
			src, ok := sourceMap[id]
			if !ok {
				continue
			}
			if _, dup := seen[src.FileName]; dup {
				continue
			}
			seen[src.FileName] = struct{}{}
			files = append(files, src.FileName)
		}
		if len(files) > 3 {
			files = files[:3]
		}
		parts = append(parts, fmt.Sprintf(
			"Question %d: %s\nAnswer: %s\nSources: %s",
			i+1, step.Question, step.Answer, strings.Join(files, ", "),
		))
	}

	answer, err := uc.generator.Complete(ctx, buildSynthesisPrompt(query, strings.Join(parts, "\n\n")), 2000, "")
	if err != nil {
		slog.Error("research_synthesis_degraded", "error", domain.WrapError(domain.ErrGeneration, "synthesis", err))
		return strings.Join(parts, "\n\n")
	}
	return strings.TrimSpace(answer)
}
