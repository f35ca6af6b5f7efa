package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avmoreno/corpus-qa/internal/bootstrap"
	"github.com/avmoreno/corpus-qa/internal/config"
	"github.com/avmoreno/corpus-qa/internal/observability/logging"
	"github.com/avmoreno/corpus-qa/internal/observability/metrics"
)

const serviceName = "corpus-qa-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(workerMetrics),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		return processDocument(processCtx, app, workerMetrics, documentID)
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(workerMetrics *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func processDocument(ctx context.Context, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics, documentID string) error {
	if doc, err := app.Documents.GetByID(ctx, documentID); err == nil {
		workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
	}

	workerMetrics.StartDocument()
	start := time.Now()
	err := app.ProcessUC.ProcessByID(ctx, documentID)
	workerMetrics.FinishDocument(serviceName, time.Since(start), err)
	if err != nil {
		return err
	}

	if doc, getErr := app.Documents.GetByID(ctx, documentID); getErr == nil {
		workerMetrics.ObserveIndexedChunks(serviceName, doc.ChunkCount)
	}

	// The snapshot would catch up on its TTL anyway; refreshing here makes
	// freshly indexed documents searchable immediately.
	if refreshErr := app.CorpusStore.Refresh(ctx); refreshErr != nil {
		slog.Warn("corpus_refresh_failed", "document_id", documentID, "error", refreshErr)
	}
	return nil
}
