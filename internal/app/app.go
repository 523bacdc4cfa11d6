// Package app wires the dispatch pipeline from configuration. It is shared
// by the api and worker binaries.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"outbound/internal/config"
	"outbound/internal/contacts"
	"outbound/internal/credentials"
	"outbound/internal/dispatch"
	"outbound/internal/providers"
	"outbound/internal/providers/resend"
	"outbound/internal/providers/twilio"
	"outbound/internal/service"
	"outbound/internal/store/pg"
	"outbound/internal/util"
)

func OpenStore(ctx context.Context, cfg config.DBConfig) (*pg.Store, error) {
	pool, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBConnLifetime,
		PingTimeout:     cfg.DBStartupTimeout,
	})
	if err != nil {
		return nil, err
	}
	return pg.New(pool), nil
}

// NewRegistry registers every transport the process can use. Twilio goes
// through a Guard; the email transport fails without I/O and is not guarded.
func NewRegistry(cfg config.DispatchConfig) *providers.Registry {
	tw := &twilio.Client{
		HTTP:    &http.Client{Timeout: cfg.TransportTimeout + time.Second},
		BaseURL: cfg.TwilioBaseURL,
	}
	var limiter *rate.Limiter
	if cfg.TwilioRPSPerPod > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TwilioRPSPerPod), cfg.TwilioBurst)
	}
	return providers.NewRegistry().
		Register(twilio.Provider, &providers.Guard{
			Provider: twilio.Provider,
			Next:     tw,
			Timeout:  cfg.TransportTimeout,
			Limiter:  limiter,
			Breaker:  providers.NewBreaker(twilio.Provider, cfg.BreakerConsecutiveFailures, cfg.BreakerOpenFor),
		}).
		Register(resend.Provider, resend.Transport{})
}

func NewOrchestrator(st *pg.Store, cfg config.DispatchConfig, logger *slog.Logger) (*dispatch.Orchestrator, error) {
	table, err := credentials.ParseProviders(cfg.ChannelProviders)
	if err != nil {
		return nil, err
	}
	return &dispatch.Orchestrator{
		Ledger:        st,
		Contacts:      contacts.NewResolver(contacts.SourceFunc(st.LookupLead), contacts.SourceFunc(st.LookupCustomer)),
		Credentials:   credentials.New(st, table),
		Transports:    NewRegistry(cfg),
		LedgerTimeout: cfg.LedgerTimeout,
		IDGen:         util.NewMessageID,
		Now:           util.NowUTC,
		Logger:        logger,
	}, nil
}

// Optional collaborators of NewMessaging; nil fields disable the feature.
type Options struct {
	Reports interface {
		dispatch.ReportSink
		service.Reports
	}
	Queue service.Queue
}

func NewMessaging(st *pg.Store, cfg config.DispatchConfig, logger *slog.Logger, opts Options) (*service.Messaging, error) {
	orch, err := NewOrchestrator(st, cfg, logger)
	if err != nil {
		return nil, err
	}
	coord := &dispatch.Coordinator{
		Dispatcher:  orch,
		Concurrency: cfg.FanoutConcurrency,
		IDGen:       util.NewReportID,
		Now:         util.NowUTC,
		Logger:      logger,
	}
	svc := &service.Messaging{Dispatcher: orch, FanOut: coord, Messages: st}
	if opts.Reports != nil {
		coord.Reports = opts.Reports
		svc.Reports = opts.Reports
	}
	if opts.Queue != nil {
		svc.Queue = opts.Queue
	}
	return svc, nil
}

// ServeMetrics exposes the default Prometheus registry on port.
func ServeMetrics(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	return srv
}
