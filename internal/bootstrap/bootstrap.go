package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/kb-router/internal/config"
	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
	"github.com/kirillkom/kb-router/internal/core/usecase"
	"github.com/kirillkom/kb-router/internal/infrastructure/chunking"
	"github.com/kirillkom/kb-router/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/kb-router/internal/infrastructure/loader"
	natsqueue "github.com/kirillkom/kb-router/internal/infrastructure/queue/nats"
	"github.com/kirillkom/kb-router/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/kb-router/internal/infrastructure/resilience"
	"github.com/kirillkom/kb-router/internal/infrastructure/retrieval"
	"github.com/kirillkom/kb-router/internal/infrastructure/sqltools"
	"github.com/kirillkom/kb-router/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/kb-router/internal/infrastructure/websearch"
)

// App wires every adapter behind the core ports. Both binaries build the full
// graph; the api serves it over HTTP while the worker only consumes the queue.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Engine   ports.RetrievalEngine
	Queue    ports.ReindexQueue
	Sessions ports.SessionStore
	AskUC    *usecase.AskUseCase
	IngestUC *usecase.IngestUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sessions := postgres.NewSessionRepository(db)
	if err := sessions.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.KBDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init corpus storage: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultPolicy(), logger)

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, logger, natsqueue.Options{Executor: exec})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init reindex queue: %w", err)
	}

	llm := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)

	store, err := retrieval.NewStore(cfg.KBIndexDir)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init index store: %w", err)
	}
	engine := retrieval.NewEngine(
		loader.NewFSLoader(cfg.KBDir, logger),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		llm,
		retrieval.NewOverlapReranker(),
		store,
		retrieval.Config{
			Alpha:      cfg.HybridAlpha,
			Candidates: cfg.HybridCandidates,
			DefaultK:   cfg.SearchTopK,
			Rerank:     cfg.RerankEnabled,
			RerankTopN: cfg.RerankTopN,
		},
		logger,
	)

	limits := usecase.AgentLimits{
		MaxIterations: cfg.AgentMaxIterations,
		StepTimeout:   time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		ToolTimeout:   time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
	}

	webClient := websearch.New(cfg.TavilyURL, cfg.TavilyAPIKey, cfg.TavilyMaxResults, exec)
	executors := map[domain.Route]ports.Executor{
		domain.RouteKnowledgeBase:  usecase.NewToolAgent(llm, usecase.KBTools(engine), usecase.KBAgentSystem, limits, logger),
		domain.RouteStructuredData: usecase.NewToolAgent(llm, sqltools.New(db).Tools(), usecase.DBAgentSystem, limits, logger),
		domain.RouteWeb:            usecase.NewToolAgent(llm, []ports.Tool{websearch.NewTool(webClient)}, usecase.WebAgentSystem, limits, logger),
	}
	router := usecase.NewRouter(usecase.NewPlanner(llm, logger), executors, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Engine:   engine,
		Queue:    queue,
		Sessions: sessions,
		AskUC:    usecase.NewAskUseCase(sessions, router, cfg.ChatMaxTurns, logger),
		IngestUC: usecase.NewIngestUseCase(storage, queue, cfg.MaxUploadBytes, logger),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
