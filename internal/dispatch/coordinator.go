package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"outbound/internal/domain"
	"outbound/internal/observability"
	"outbound/internal/util"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.SendRequest) (domain.DispatchOutcome, error)
}

// ReportSink persists finished fan-out reports.
type ReportSink interface {
	Save(ctx context.Context, r domain.FanoutReport) error
}

type Coordinator struct {
	Dispatcher Dispatcher
	// Concurrency caps in-flight dispatches; 0 runs every recipient at once.
	Concurrency int
	Reports     ReportSink
	IDGen       func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// DispatchToMany dispatches tmpl to every recipient independently and waits
// for all of them. A report in which every recipient failed is still a
// successful call; only ErrNoRecipients and an invalid template are errors.
func (c *Coordinator) DispatchToMany(ctx context.Context, tmpl domain.Template, recipients []domain.Recipient) (domain.FanoutReport, error) {
	if len(recipients) == 0 {
		return domain.FanoutReport{}, domain.ErrNoRecipients
	}
	tmpl = tmpl.Normalize()
	if err := tmpl.Validate(); err != nil {
		return domain.FanoutReport{}, err
	}

	report := domain.FanoutReport{
		ID:        c.newID(),
		Channel:   tmpl.Channel,
		Total:     len(recipients),
		StartedAt: c.now(),
	}
	observability.FanoutRecipients.Observe(float64(len(recipients)))

	// each task owns outcomes[i]; nothing else is shared between tasks
	outcomes := make([]domain.DispatchOutcome, len(recipients))
	var g errgroup.Group
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, r := range recipients {
		i, r := i, r
		g.Go(func() error {
			out, err := c.Dispatcher.Dispatch(ctx, tmpl.For(r))
			if err != nil {
				out = domain.DispatchOutcome{Err: &domain.StageError{Stage: domain.StageRequest, Err: err}}
			}
			out.Recipient = r
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = c.now()
	report.Sent = make([]domain.RecipientResult, 0, len(outcomes))
	report.Failures = make([]domain.RecipientResult, 0)
	for _, out := range outcomes {
		res := domain.RecipientResult{
			Recipient: out.Recipient,
			MessageID: out.Message.ID,
			Status:    out.Message.Status,
		}
		if out.OK() {
			report.Sent = append(report.Sent, res)
			continue
		}
		if out.Err != nil {
			res.Stage = out.Err.Stage
			res.Error = out.Err.Err.Error()
		}
		report.Failures = append(report.Failures, res)
	}
	report.Succeeded = len(report.Sent)
	report.Failed = len(report.Failures)
	observability.FanoutResults.WithLabelValues(string(tmpl.Channel), "sent").Add(float64(report.Succeeded))
	observability.FanoutResults.WithLabelValues(string(tmpl.Channel), "failed").Add(float64(report.Failed))

	c.logger().Info("fanout finished",
		"report_id", report.ID,
		"channel", report.Channel,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	if c.Reports != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := c.Reports.Save(saveCtx, report); err != nil {
			c.logger().Error("save fanout report failed", "err", err, "report_id", report.ID)
		}
	}
	return report, nil
}

func (c *Coordinator) newID() string {
	if c.IDGen != nil {
		return c.IDGen()
	}
	return util.NewReportID()
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return util.NowUTC()
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
