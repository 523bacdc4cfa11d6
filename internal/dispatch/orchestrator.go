// Package dispatch runs one outbound message through its lifecycle
// (ledger create → credential → address → transport → finalize) and fans a
// template out to many recipients.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"outbound/internal/domain"
	"outbound/internal/observability"
	"outbound/internal/providers"
	"outbound/internal/store"
	"outbound/internal/util"
)

const DefaultLedgerTimeout = 5 * time.Second

var tracer = otel.Tracer("outbound/internal/dispatch")

// Ledger is the only writer of message status.
type Ledger interface {
	CreateMessage(ctx context.Context, in store.MessageInsert) (domain.Message, error)
	FinalizeMessage(ctx context.Context, in store.MessageFinalize) error
}

type ContactResolver interface {
	Resolve(ctx context.Context, ref domain.ContactRef) (domain.Contact, error)
}

type CredentialResolver interface {
	Resolve(ctx context.Context, ch domain.Channel) (domain.Credential, error)
}

type Transports interface {
	Lookup(provider string) (providers.Transport, bool)
}

type Orchestrator struct {
	Ledger      Ledger
	Contacts    ContactResolver
	Credentials CredentialResolver
	Transports  Transports

	// LedgerTimeout bounds each store call (ledger, contacts, credentials).
	LedgerTimeout time.Duration
	IDGen         func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// Dispatch sends one message. The returned error is non-nil only for
// requests rejected before a ledger row exists (domain.ErrInvalidRequest);
// every other failure is reported in the outcome and persisted on the message.
//
// Caller cancellation does not abort a dispatch once it has started: the
// message always reaches a terminal status.
func (o *Orchestrator) Dispatch(ctx context.Context, req domain.SendRequest) (domain.DispatchOutcome, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.DispatchOutcome{}, err
	}
	return o.run(context.WithoutCancel(ctx), req), nil
}

func (o *Orchestrator) run(ctx context.Context, req domain.SendRequest) domain.DispatchOutcome {
	ctx, span := tracer.Start(ctx, "dispatch.message", trace.WithAttributes(
		attribute.String("message.channel", string(req.Channel)),
		attribute.String("contact.type", string(req.Contact.Kind)),
	))
	defer span.End()

	now := o.now()
	var msg domain.Message
	err := o.storeCall(ctx, func(ctx context.Context) error {
		var err error
		msg, err = o.Ledger.CreateMessage(ctx, store.MessageInsert{
			ID:      o.newID(),
			Contact: req.Contact,
			Channel: req.Channel,
			Content: req.Content,
			Now:     now,
		})
		return err
	})
	if err != nil {
		out := domain.DispatchOutcome{
			Recipient: domain.Recipient{Contact: req.Contact},
			Err:       &domain.StageError{Stage: domain.StageLedger, Err: err},
		}
		o.record(span, req, out)
		return out
	}
	span.SetAttributes(attribute.String("message.id", msg.ID))

	provider := ""
	fail := func(stage domain.Stage, err error) domain.DispatchOutcome {
		return o.finalize(ctx, span, req, msg, &domain.StageError{Stage: stage, Err: err}, providers.Receipt{Provider: provider})
	}

	var cred domain.Credential
	if err := o.storeCall(ctx, func(ctx context.Context) error {
		var err error
		cred, err = o.Credentials.Resolve(ctx, req.Channel)
		return err
	}); err != nil {
		return fail(domain.StageCredential, err)
	}
	provider = cred.Provider

	var contact domain.Contact
	if err := o.storeCall(ctx, func(ctx context.Context) error {
		var err error
		contact, err = o.Contacts.Resolve(ctx, req.Contact)
		return err
	}); err != nil {
		return fail(domain.StageAddress, err)
	}
	addr, ok := contact.Address(req.Channel)
	if !ok {
		return fail(domain.StageAddress, fmt.Errorf("%s %s has no %s address", req.Contact.Kind, req.Contact.ID, req.Channel))
	}
	if req.Channel == domain.ChannelSMS {
		addr = util.NormalizePhone(addr)
	}

	transport, ok := o.Transports.Lookup(cred.Provider)
	if !ok {
		return fail(domain.StageTransport, domain.NotImplemented(cred.Provider))
	}
	rcpt, err := transport.Send(ctx, cred, addr, req.Content)
	if err != nil {
		return fail(domain.StageTransport, err)
	}
	if rcpt.Provider == "" {
		rcpt.Provider = cred.Provider
	}
	return o.finalize(ctx, span, req, msg, nil, rcpt)
}

func (o *Orchestrator) finalize(ctx context.Context, span trace.Span, req domain.SendRequest, msg domain.Message, se *domain.StageError, rcpt providers.Receipt) domain.DispatchOutcome {
	fin := store.MessageFinalize{
		ID:            msg.ID,
		Status:        domain.StatusSent,
		Provider:      rcpt.Provider,
		ProviderMsgID: rcpt.ProviderMsgID,
		Now:           o.now(),
	}
	if se != nil {
		fin.Status = domain.StatusFailed
		fin.Failure = se.Metadata()
	}

	err := o.storeCall(ctx, func(ctx context.Context) error { return o.Ledger.FinalizeMessage(ctx, fin) })

	msg.Status = fin.Status
	msg.Failure = fin.Failure
	msg.Provider = fin.Provider
	msg.ProviderMsgID = fin.ProviderMsgID
	msg.UpdatedAt = fin.Now
	out := domain.DispatchOutcome{Recipient: domain.Recipient{Contact: req.Contact}, Message: msg, Err: se}

	if err != nil {
		observability.LedgerFinalizeErrors.Inc()
		o.logger().Error("finalize message failed",
			"err", err,
			"message_id", msg.ID,
			"status", fin.Status,
		)
		if se == nil {
			out.Err = &domain.StageError{Stage: domain.StageLedger, Err: fmt.Errorf("finalize as %s: %w", fin.Status, err)}
		}
	}
	o.record(span, req, out)
	return out
}

func (o *Orchestrator) record(span trace.Span, req domain.SendRequest, out domain.DispatchOutcome) {
	status, stage := string(domain.StatusSent), ""
	if out.Err != nil {
		status, stage = string(domain.StatusFailed), string(out.Err.Stage)
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, stage)
	}
	observability.Dispatches.WithLabelValues(string(req.Channel), status, stage).Inc()

	if out.Err != nil {
		o.logger().Warn("dispatch failed",
			"message_id", out.Message.ID,
			"channel", req.Channel,
			"contact_type", req.Contact.Kind,
			"contact_id", req.Contact.ID,
			"stage", stage,
			"err", out.Err.Err,
		)
		return
	}
	o.logger().Info("dispatch sent",
		"message_id", out.Message.ID,
		"channel", req.Channel,
		"contact_type", req.Contact.Kind,
		"contact_id", req.Contact.ID,
		"provider", out.Message.Provider,
		"provider_msg_id", out.Message.ProviderMsgID,
	)
}

func (o *Orchestrator) storeCall(ctx context.Context, fn func(context.Context) error) error {
	timeout := o.LedgerTimeout
	if timeout <= 0 {
		timeout = DefaultLedgerTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func (o *Orchestrator) newID() string {
	if o.IDGen != nil {
		return o.IDGen()
	}
	return util.NewMessageID()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return util.NowUTC()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
