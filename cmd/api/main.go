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
	"github.com/redis/go-redis/v9"

	"outbound/internal/app"
	"outbound/internal/awsutil"
	"outbound/internal/config"
	"outbound/internal/httpserver"
	"outbound/internal/logging"
	"outbound/internal/observability"
	sqsqueue "outbound/internal/queue/sqs"
	"outbound/internal/reports"
)

func main() {
	cfg := config.LoadAPI()
	logger := logging.Init("api", logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel, File: cfg.LogFile})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := app.OpenStore(ctx, cfg.DBConfig)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer st.DB.Close()

	observability.Register(prometheus.DefaultRegisterer)

	checks := []httpserver.ReadyzCheck{{Name: "postgres", Check: st.Ping}}
	var opts app.Options

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		rs := reports.NewRedisStore(rdb, cfg.ReportTTL)
		opts.Reports = rs
		checks = append(checks, httpserver.ReadyzCheck{Name: "redis", Check: rs.Ping})
	} else {
		opts.Reports = reports.NewMemoryStore(cfg.ReportTTL)
	}

	if cfg.SQSQueueURL != "" {
		sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
		if err != nil {
			slog.Error("api sqs client init failed", "err", err)
			os.Exit(1)
		}
		opts.Queue = &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.SQSQueueURL}
		checks = append(checks, httpserver.ReadyzCheck{Name: "sqs", Check: awsutil.QueueReachable(sqsClient, cfg.SQSQueueURL)})
	}

	svc, err := app.NewMessaging(st, cfg.DispatchConfig, logger, opts)
	if err != nil {
		slog.Error("api dispatch config invalid", "err", err)
		os.Exit(1)
	}

	metricsSrv := app.ServeMetrics(cfg.MetricsPort)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.NewAPI(&httpserver.API{Svc: svc}, 2*time.Second, checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		cancel()
		// in-flight dispatches finish on their own contexts; give them time to finalize
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("api listening", "port", cfg.Port,
		"reports_redis", cfg.RedisAddr != "",
		"deferred", opts.Queue != nil,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
