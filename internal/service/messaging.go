// Package service is the caller-facing API over dispatch, the ledger and
// the optional report store and deferred queue.
package service

import (
	"context"
	"errors"
	"fmt"

	"outbound/internal/domain"
	"outbound/internal/observability"
	"outbound/internal/util"
)

var (
	ErrQueueDisabled   = errors.New("deferred queue not configured")
	ErrReportsDisabled = errors.New("report store not configured")
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.SendRequest) (domain.DispatchOutcome, error)
}

type FanOut interface {
	DispatchToMany(ctx context.Context, tmpl domain.Template, recipients []domain.Recipient) (domain.FanoutReport, error)
}

type Messages interface {
	GetMessage(ctx context.Context, id string) (domain.Message, bool, error)
}

type Reports interface {
	Get(ctx context.Context, id string) (domain.FanoutReport, error)
}

type Queue interface {
	EnqueueDispatch(ctx context.Context, job domain.DispatchJob) error
}

type Messaging struct {
	Dispatcher Dispatcher
	FanOut     FanOut
	Messages   Messages
	// Reports and Queue are optional.
	Reports Reports
	Queue   Queue
}

// SendMessage dispatches one message. A failed dispatch returns the
// persisted failed message together with its *domain.StageError.
func (s *Messaging) SendMessage(ctx context.Context, req domain.SendRequest) (domain.Message, error) {
	out, err := s.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		return domain.Message{}, err
	}
	if out.Err != nil {
		return out.Message, out.Err
	}
	return out.Message, nil
}

func (s *Messaging) SendToMany(ctx context.Context, tmpl domain.Template, recipients []domain.Recipient) (domain.FanoutReport, error) {
	return s.FanOut.DispatchToMany(ctx, tmpl, recipients)
}

func (s *Messaging) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	m, found, err := s.Messages.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if !found {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (s *Messaging) GetReport(ctx context.Context, id string) (domain.FanoutReport, error) {
	if s.Reports == nil {
		return domain.FanoutReport{}, ErrReportsDisabled
	}
	return s.Reports.Get(ctx, id)
}

// Defer validates req and queues it for the worker. Nothing is written to
// the ledger until the worker runs the dispatch.
func (s *Messaging) Defer(ctx context.Context, req domain.SendRequest) (string, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.Queue == nil {
		return "", ErrQueueDisabled
	}
	requestID := util.NewRequestID()
	if err := s.Queue.EnqueueDispatch(ctx, domain.NewDispatchJob(requestID, req)); err != nil {
		observability.DeferredEnqueues.WithLabelValues("error").Inc()
		return "", fmt.Errorf("enqueue %s: %w", requestID, err)
	}
	observability.DeferredEnqueues.WithLabelValues("ok").Inc()
	return requestID, nil
}
