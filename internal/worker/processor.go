// Package worker runs queued dispatch jobs and watches the ledger for
// messages that never reached a terminal status.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"outbound/internal/domain"
	"outbound/internal/observability"
)

type Sender interface {
	SendMessage(ctx context.Context, req domain.SendRequest) (domain.Message, error)
}

type Processor struct {
	Sender Sender
	Logger *slog.Logger
}

// Process runs one dispatch for job. Only a job whose ledger row could not be
// created is returned as an error and left for redrive; every other outcome
// is already recorded on the message, so retrying would send twice.
func (p *Processor) Process(ctx context.Context, job domain.DispatchJob) error {
	start := time.Now()
	log := p.logger().With("request_id", job.RequestID, "channel", job.Channel, "contact_type", job.ContactType)

	msg, err := p.Sender.SendMessage(ctx, job.Request())
	if err == nil {
		log.Info("job dispatched", "message_id", msg.ID, "duration", time.Since(start))
		return nil
	}
	if errors.Is(err, domain.ErrInvalidRequest) {
		log.Warn("dropping invalid job", "err", err)
		return nil
	}
	var se *domain.StageError
	if errors.As(err, &se) && se.Stage == domain.StageLedger && msg.ID == "" {
		return err
	}
	log.Info("job dispatch failed", "message_id", msg.ID, "err", err, "duration", time.Since(start))
	return nil
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

type PendingSource interface {
	StalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// Sweeper reports messages stuck in pending. It never changes status.
type Sweeper struct {
	Ledger   PendingSource
	StaleAge time.Duration
	Limit    int
	Now      func() time.Time
	Logger   *slog.Logger
}

func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.Ledger.StalePending(ctx, now().Add(-s.StaleAge), limit)
	if err != nil {
		return 0, err
	}
	observability.StalePending.Set(float64(len(ids)))
	if len(ids) > 0 {
		s.logger().Warn("stale pending messages", "count", len(ids), "older_than", s.StaleAge, "message_ids", ids)
	}
	return len(ids), nil
}

const DefaultSweepInterval = time.Minute

// Run sweeps every interval until ctx is done. A non-positive interval falls
// back to DefaultSweepInterval.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger().Error("stale pending sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
