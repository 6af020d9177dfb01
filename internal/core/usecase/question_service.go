package usecase

import (
	"context"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

// QuestionUseCase bundles the three answering strategies behind one inbound
// service: single-pass ask, confidence-driven iterative search and the
// decompose/synthesize research pipeline.
type QuestionUseCase struct {
	ask       *AskUseCase
	iterative *IterativeAgentUseCase
	research  *ResearchUseCase
}

func NewQuestionUseCase(ask *AskUseCase, iterative *IterativeAgentUseCase, research *ResearchUseCase) *QuestionUseCase {
	return &QuestionUseCase{ask: ask, iterative: iterative, research: research}
}

func (uc *QuestionUseCase) Ask(ctx context.Context, query string, opts ports.AskOptions) (*domain.Answer, error) {
	return uc.ask.Ask(ctx, query, opts)
}

func (uc *QuestionUseCase) AskIterative(ctx context.Context, query string) (*domain.IterativeResult, error) {
	return uc.iterative.Run(ctx, query)
}

func (uc *QuestionUseCase) Research(ctx context.Context, query string) (*domain.ResearchResult, error) {
	return uc.research.Research(ctx, query)
}
