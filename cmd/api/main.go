package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/kb-router/internal/adapters/http"
	"github.com/kirillkom/kb-router/internal/bootstrap"
	"github.com/kirillkom/kb-router/internal/config"
	"github.com/kirillkom/kb-router/internal/observability/logging"
	"github.com/kirillkom/kb-router/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Serve from the persisted index right away; a missing index stays
	// empty until the first reindex.
	loaded, err := app.Engine.LoadIfExists(ctx)
	if err != nil {
		logger.Error("index load failed", "error", err)
	}
	logger.Info("index startup", "loaded", loaded)

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.AskUC,
		app.IngestUC,
		app.Sessions,
		app.Engine,
		serverMetrics,
		"api",
		httpadapter.TrafficLimits{
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxInFlight:    cfg.APIMaxInFlight,
			QueueWait:      time.Duration(cfg.APIQueueWaitMillis) * time.Millisecond,
		},
		logger,
	)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
