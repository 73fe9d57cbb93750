package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgelearn/retrieval-engine/internal/bootstrap"
	"github.com/edgelearn/retrieval-engine/internal/config"
	"github.com/edgelearn/retrieval-engine/internal/observability/logging"
	"github.com/edgelearn/retrieval-engine/internal/observability/metrics"
)

const serviceName = "retrieval-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context, sourceDocument string) error {
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartRebuild()
		start := time.Now()
		rebuildErr := app.RebuildUC.RebuildFromStore(rebuildCtx)
		workerMetrics.FinishRebuild(serviceName, time.Since(start), rebuildErr)

		if rebuildErr != nil {
			logger.Error("index rebuild failed", "source_document", sourceDocument, "error", rebuildErr)
			return rebuildErr
		}

		if stats, statsErr := app.StatsUC.Stats(rebuildCtx); statsErr == nil {
			workerMetrics.SetIndexSizes(stats.DenseVectors, stats.LexicalDocs, stats.GraphNodes, stats.GraphEdges)
		}
		logger.Info("index rebuild complete", "source_document", sourceDocument, "duration", time.Since(start).String())
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
