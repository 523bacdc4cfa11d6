package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outbound/internal/domain"
	"outbound/internal/store"
)

// Store implements the message ledger, both contact sources and the
// integrations lookup on one pool.
type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Store) CreateMessage(ctx context.Context, in store.MessageInsert) (domain.Message, error) {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO messages (id, contact_id, contact_type, direction, channel, content, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
	`, in.ID, in.Contact.ID, string(in.Contact.Kind), domain.DirectionOutbound, string(in.Channel), in.Content, string(domain.StatusPending), in.Now)
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return domain.Message{
		ID:        in.ID,
		Contact:   in.Contact,
		Direction: domain.DirectionOutbound,
		Channel:   in.Channel,
		Content:   in.Content,
		Status:    domain.StatusPending,
		CreatedAt: in.Now,
		UpdatedAt: in.Now,
	}, nil
}

// FinalizeMessage is the only statement that writes messages.status after insert.
// The pending guard makes a second finalize a no-op reported as ErrAlreadyFinalized.
func (s *Store) FinalizeMessage(ctx context.Context, in store.MessageFinalize) error {
	if !in.Status.Terminal() {
		return fmt.Errorf("finalize %s: status %q is not terminal", in.ID, in.Status)
	}
	var md []byte
	if in.Failure != nil {
		b, err := json.Marshal(in.Failure)
		if err != nil {
			return fmt.Errorf("encode failure metadata: %w", err)
		}
		md = b
	}

	ct, err := s.DB.Exec(ctx, `
		UPDATE messages
		SET status=$2, metadata=$3, provider=$4, provider_msg_id=$5, updated_at=$6
		WHERE id=$1 AND status='pending'
	`, in.ID, string(in.Status), md, nullIfEmpty(in.Provider), nullIfEmpty(in.ProviderMsgID), in.Now)
	if err != nil {
		return fmt.Errorf("finalize message: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var st string
	err = s.DB.QueryRow(ctx, `SELECT status FROM messages WHERE id=$1`, in.ID).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("finalize %s: %w", in.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("finalize message: %w", err)
	}
	return fmt.Errorf("finalize %s (status %s): %w", in.ID, st, domain.ErrAlreadyFinalized)
}

func (s *Store) GetMessage(ctx context.Context, msgID string) (domain.Message, bool, error) {
	var (
		m                     domain.Message
		kind, channel, status string
		md                    []byte
	)
	err := s.DB.QueryRow(ctx, `
		SELECT id, contact_id, contact_type, direction, channel, content, status, metadata,
		       COALESCE(provider,''), COALESCE(provider_msg_id,''), created_at, updated_at
		FROM messages WHERE id=$1
	`, msgID).Scan(&m.ID, &m.Contact.ID, &kind, &m.Direction, &channel, &m.Content, &status, &md,
		&m.Provider, &m.ProviderMsgID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	m.Contact.Kind = domain.ContactKind(kind)
	m.Channel = domain.Channel(channel)
	m.Status = domain.MessageStatus(status)
	if len(md) > 0 {
		var f domain.FailureMetadata
		if err := json.Unmarshal(md, &f); err != nil {
			return domain.Message{}, false, fmt.Errorf("decode metadata of %s: %w", msgID, err)
		}
		m.Failure = &f
	}
	return m, true, nil
}

// StalePending lists messages still pending after olderThan; a non-empty
// result means a dispatcher died between create and finalize.
func (s *Store) StalePending(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM messages WHERE status='pending' AND created_at < $1
		ORDER BY created_at LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) LookupLead(ctx context.Context, id string) (domain.Contact, error) {
	c := domain.Contact{Kind: domain.KindLead}
	err := s.DB.QueryRow(ctx, `
		SELECT id, COALESCE(name,''), COALESCE(email,''), COALESCE(phone,'') FROM leads WHERE id=$1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	return c, contactErr("lead", id, err)
}

func (s *Store) LookupCustomer(ctx context.Context, id string) (domain.Contact, error) {
	c := domain.Contact{Kind: domain.KindCustomer}
	err := s.DB.QueryRow(ctx, `
		SELECT id, TRIM(COALESCE(first_name,'') || ' ' || COALESCE(last_name,'')), COALESCE(email,''), COALESCE(phone,'')
		FROM customers WHERE id=$1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	return c, contactErr("customer", id, err)
}

func contactErr(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return fmt.Errorf("lookup %s %s: %w", kind, id, err)
}

// EnabledIntegrations returns every enabled integrations row for provider.
func (s *Store) EnabledIntegrations(ctx context.Context, provider string) ([]domain.Credential, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, provider, enabled, credentials FROM integrations
		WHERE provider=$1 AND enabled
		ORDER BY created_at
	`, provider)
	if err != nil {
		return nil, fmt.Errorf("query integrations: %w", err)
	}
	defer rows.Close()

	var out []domain.Credential
	for rows.Next() {
		var c domain.Credential
		var bundle []byte
		if err := rows.Scan(&c.ID, &c.Provider, &c.Enabled, &bundle); err != nil {
			return nil, err
		}
		c.Bundle = bundle
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
