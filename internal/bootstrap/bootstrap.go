package bootstrap

import (
	"context"
	"fmt"

	"github.com/edgelearn/retrieval-engine/internal/config"
	"github.com/edgelearn/retrieval-engine/internal/core/ports"
	"github.com/edgelearn/retrieval-engine/internal/core/usecase"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/embedder/ollama"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/graph"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/index/dense"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/index/lexical"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/queue/nats"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/repository/postgres"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/resilience"
	"github.com/edgelearn/retrieval-engine/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Store ports.MetadataStore

	IngestUC   ports.ContentIngestor
	RebuildUC  ports.IndexRebuilder
	RetrieveUC ports.Retriever
	StatsUC    ports.StatsProvider

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewMetadataRepository(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	denseIndex := dense.New(cfg.IndexDir)
	if err := denseIndex.Load(); err != nil {
		return nil, fmt.Errorf("load dense index: %w", err)
	}
	lexicalIndex := lexical.New(cfg.IndexDir)
	if err := lexicalIndex.Load(); err != nil {
		return nil, fmt.Errorf("load lexical index: %w", err)
	}
	kg := graph.New(store)

	materializer, err := localfs.New(cfg.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("init image materializer: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.OllamaVisualModel, ollama.Options{
		ResilienceExecutor: executor,
	})

	ingestUC := usecase.NewIngestContentUseCase(store, queue, kg)
	rebuildUC := usecase.NewRebuildIndexUseCase(store, denseIndex, lexicalIndex, kg, embedder)
	retrieveUC := usecase.NewRetrieveUseCase(store, denseIndex, lexicalIndex, kg, embedder, materializer,
		usecase.RetrieveOptions{
			FetchK:          cfg.RetrievalFetchK,
			DiversityLambda: cfg.RetrievalDiversityLambda,
			MaxExpansion:    cfg.RetrievalMaxExpansion,
			PageWindow:      cfg.RetrievalPageWindow,
			RankExpanded:    cfg.RetrievalRankExpanded,
		})
	statsUC := usecase.NewStatsUseCase(store, denseIndex, lexicalIndex, kg)

	return &App{
		Config: cfg,
		Queue:  queue,
		Store:  store,

		IngestUC:   ingestUC,
		RebuildUC:  rebuildUC,
		RetrieveUC: retrieveUC,
		StatsUC:    statsUC,

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
