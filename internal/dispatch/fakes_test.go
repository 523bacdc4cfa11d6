package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"outbound/internal/contacts"
	"outbound/internal/credentials"
	"outbound/internal/domain"
	"outbound/internal/providers"
	"outbound/internal/providers/resend"
	"outbound/internal/store"
)

type memLedger struct {
	mu          sync.Mutex
	rows        map[string]domain.Message
	createErr   error
	finalizeErr error
}

func newMemLedger() *memLedger { return &memLedger{rows: map[string]domain.Message{}} }

func (l *memLedger) CreateMessage(_ context.Context, in store.MessageInsert) (domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return domain.Message{}, l.createErr
	}
	m := domain.Message{
		ID:        in.ID,
		Contact:   in.Contact,
		Direction: domain.DirectionOutbound,
		Channel:   in.Channel,
		Content:   in.Content,
		Status:    domain.StatusPending,
		CreatedAt: in.Now,
		UpdatedAt: in.Now,
	}
	l.rows[m.ID] = m
	return m, nil
}

func (l *memLedger) FinalizeMessage(_ context.Context, in store.MessageFinalize) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finalizeErr != nil {
		return l.finalizeErr
	}
	m, ok := l.rows[in.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if m.Status != domain.StatusPending {
		return domain.ErrAlreadyFinalized
	}
	m.Status = in.Status
	m.Failure = in.Failure
	m.Provider = in.Provider
	m.ProviderMsgID = in.ProviderMsgID
	m.UpdatedAt = in.Now
	l.rows[in.ID] = m
	return nil
}

func (l *memLedger) get(id string) (domain.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.rows[id]
	return m, ok
}

func (l *memLedger) all() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Message, 0, len(l.rows))
	for _, m := range l.rows {
		out = append(out, m)
	}
	return out
}

type integrations struct {
	rows map[string][]domain.Credential
}

func (i integrations) EnabledIntegrations(_ context.Context, provider string) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, c := range i.rows[provider] {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

type directory map[string]domain.Contact

func (d directory) Lookup(_ context.Context, id string) (domain.Contact, error) {
	c, ok := d[id]
	if !ok {
		return domain.Contact{}, fmt.Errorf("contact %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

type smsTransport struct {
	mu       sync.Mutex
	sent     []string
	err      error
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	ctxErrs  atomic.Int32
	seq      atomic.Int32
}

func (s *smsTransport) Send(ctx context.Context, _ domain.Credential, to, _ string) (providers.Receipt, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if ctx.Err() != nil {
		s.ctxErrs.Add(1)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.sent = append(s.sent, to)
	s.mu.Unlock()
	if s.err != nil {
		return providers.Receipt{}, s.err
	}
	return providers.Receipt{ProviderMsgID: fmt.Sprintf("SM%03d", s.seq.Add(1)), HTTPStatus: 201}, nil
}

func (s *smsTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type harness struct {
	ledger    *memLedger
	sms       *smsTransport
	orch      *Orchestrator
	integ     integrations
	customers directory
	leads     directory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger: newMemLedger(),
		sms:    &smsTransport{},
		integ: integrations{rows: map[string][]domain.Credential{
			"twilio": {{ID: "int_twilio", Provider: "twilio", Enabled: true, Bundle: []byte(`{"accountSid":"AC1","authToken":"tok","phoneNumber":"+15550000000"}`)}},
			"resend": {{ID: "int_resend", Provider: "resend", Enabled: true, Bundle: []byte(`{}`)}},
		}},
		customers: directory{
			"cust_1": {ID: "cust_1", Name: "Ada Lovelace", Phone: "+15551234567", Email: "ada@example.com"},
			"cust_2": {ID: "cust_2", Name: "No Phone", Email: "np@example.com"},
			"cust_3": {ID: "cust_3", Name: "Grace Hopper", Phone: "+15557654321"},
		},
		leads: directory{
			"lead_1": {ID: "lead_1", Name: "Lead One", Phone: "(555) 111-2222"},
		},
	}
	var seq atomic.Int32
	h.orch = &Orchestrator{
		Ledger:      h.ledger,
		Contacts:    contacts.NewResolver(h.leads, h.customers),
		Credentials: credentials.New(h.integ, map[domain.Channel]string{domain.ChannelSMS: "twilio", domain.ChannelEmail: "resend"}),
		Transports:  providers.NewRegistry().Register("twilio", h.sms).Register("resend", resend.Transport{}),
		IDGen:       func() string { return fmt.Sprintf("msg_%03d", seq.Add(1)) },
	}
	return h
}

func (h *harness) noPending(t *testing.T) {
	t.Helper()
	for _, m := range h.ledger.all() {
		if !m.Status.Terminal() {
			t.Fatalf("message %s left %s", m.ID, m.Status)
		}
	}
}

var errBoom = errors.New("boom")

func customer(id string) domain.ContactRef {
	return domain.ContactRef{ID: id, Kind: domain.KindCustomer}
}

func credentialsFor(h *harness, table map[domain.Channel]string) CredentialResolver {
	return credentials.New(h.integ, table)
}
