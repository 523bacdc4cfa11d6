package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"outbound/internal/app"
	"outbound/internal/awsutil"
	"outbound/internal/config"
	"outbound/internal/httpserver"
	"outbound/internal/logging"
	"outbound/internal/observability"
	sqsqueue "outbound/internal/queue/sqs"
	"outbound/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logger := logging.Init("worker", logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel, File: cfg.LogFile})

	// Use a root ctx we can cancel
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := app.OpenStore(ctx, cfg.DBConfig)
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer st.DB.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}
	queueReady := awsutil.QueueReachable(sqsClient, cfg.SQSQueueURL)

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := queueReady(startupCtx); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	svc, err := app.NewMessaging(st, cfg.DispatchConfig, logger, app.Options{})
	if err != nil {
		slog.Error("worker dispatch config invalid", "err", err)
		os.Exit(1)
	}
	processor := &worker.Processor{Sender: svc, Logger: logger}
	sweeper := &worker.Sweeper{Ledger: st, StaleAge: cfg.StalePendingAfter, Logger: logger}

	consumer := &sqsqueue.Consumer{
		SQS:               sqsClient,
		QueueURL:          cfg.SQSQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	// health server (liveness + readiness)
	health := httpserver.New()
	health.Mux.HandleFunc("/healthz", httpserver.Healthz())
	health.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		httpserver.ReadyzCheck{Name: "postgres", Check: st.Ping},
		httpserver.ReadyzCheck{Name: "sqs", Check: queueReady},
	))
	healthSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(health.Mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()
	metricsSrv := app.ServeMetrics(cfg.MetricsPort)

	go sweeper.Run(ctx, cfg.SweepInterval)

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.SQSQueueURL, "workers", cfg.WorkerConcurrency)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, processor.Process)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pollDone := false
	select {
	case err := <-pollErrCh:
		pollDone = true
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	if pollDone {
		return
	}
	select {
	case <-pollErrCh:
	case <-time.After(30 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
