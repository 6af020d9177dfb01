package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/mkorhonen/drive-rag/internal/config"
	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
	"github.com/mkorhonen/drive-rag/internal/core/usecase"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/chunking"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/extractor"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/llm/ollama"
	natsqueue "github.com/mkorhonen/drive-rag/internal/infrastructure/queue/nats"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/repository/postgres"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/rerank/bge"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/resilience"
	"github.com/mkorhonen/drive-rag/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	Questions ports.QuestionService
	Search    ports.SearchService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}

	searchStore := postgres.NewSearchStore(db, cfg.EmbeddingDim)
	if err := searchStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure chunks schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	llmExecutor := resilience.NewExecutor(llmResilienceConfig(cfg))
	queueExecutor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: queueExecutor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, llmExecutor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)
	reranker := bge.New(cfg.RerankerURL)

	retriever := usecase.NewHybridRetriever(embedder, searchStore, searchStore, searchStore, cfg.RAGFusionRRFK)
	askUC := usecase.NewAskUseCase(retriever, reranker, generator)
	iterativeUC := usecase.NewIterativeAgentUseCase(retriever, reranker, generator, domain.AgentLimits{
		MaxIterations:       cfg.AgentMaxIterations,
		ConfidenceThreshold: cfg.AgentConfidenceThreshold,
		MaxSources:          cfg.AgentMaxSources,
		InitialCandidates:   cfg.AgentInitialCandidates,
		Timeout:             time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
	})
	researchUC := usecase.NewResearchUseCase(retriever, reranker, generator, cfg.RAGHybridCandidates)
	questionsUC := usecase.NewQuestionUseCase(askUC, iterativeUC, researchUC)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractorDispatch := extractor.NewDispatcher(storage)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extractorDispatch, chunker, embedder, searchStore)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Questions: questionsUC,
		Search:    retriever,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func llmResilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RateLimit = cfg.LLMRateLimit
	rc.RateBurst = cfg.LLMRateBurst
	return rc
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
