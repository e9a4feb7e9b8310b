package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/kb-router/internal/bootstrap"
	"github.com/kirillkom/kb-router/internal/config"
	"github.com/kirillkom/kb-router/internal/observability/logging"
	"github.com/kirillkom/kb-router/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", workerMetrics.Handler())
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeReindexRequested(ctx, func(handlerCtx context.Context, reason string) error {
		reindexCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		workerMetrics.StartReindex()
		start := time.Now()
		stats, err := app.Engine.Reindex(reindexCtx)
		workerMetrics.FinishReindex("worker", time.Since(start), err)
		if err != nil {
			logger.Error("reindex failed", "reason", reason, "error", err)
			return err
		}

		workerMetrics.SetCorpusSize(stats.Documents, stats.Chunks)
		logger.Info("reindex finished", "reason", reason, "docs", stats.Documents, "chunks", stats.Chunks)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
