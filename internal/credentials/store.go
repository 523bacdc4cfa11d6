// Package credentials picks the single enabled provider credential for a channel.
package credentials

import (
	"context"
	"fmt"

	"outbound/internal/domain"
)

// Source lists enabled integrations rows for a provider.
type Source interface {
	EnabledIntegrations(ctx context.Context, provider string) ([]domain.Credential, error)
}

type Store struct {
	source    Source
	providers map[domain.Channel]string
}

// New builds a store over the channel→provider table. Every Resolve reads the
// source, so disabling an integration fails the next dispatch.
func New(src Source, providers map[domain.Channel]string) *Store {
	return &Store{source: src, providers: providers}
}

// ParseProviders converts the CHANNEL_PROVIDERS map from config.
func ParseProviders(raw map[string]string) (map[domain.Channel]string, error) {
	out := make(map[domain.Channel]string, len(raw))
	for ch, p := range raw {
		c := domain.Channel(ch)
		if !c.Valid() {
			return nil, fmt.Errorf("unknown channel %q in provider table", ch)
		}
		if p == "" {
			return nil, fmt.Errorf("empty provider for channel %q", ch)
		}
		out[c] = p
	}
	return out, nil
}

func (s *Store) Provider(ch domain.Channel) (string, bool) {
	p, ok := s.providers[ch]
	return p, ok
}

func (s *Store) Resolve(ctx context.Context, ch domain.Channel) (domain.Credential, error) {
	provider, ok := s.providers[ch]
	if !ok {
		return domain.Credential{}, fmt.Errorf("channel %s has no provider mapping: %w", ch, domain.ErrNoCredential)
	}
	rows, err := s.source.EnabledIntegrations(ctx, provider)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("lookup %s credential: %w", provider, err)
	}
	switch len(rows) {
	case 0:
		return domain.Credential{}, fmt.Errorf("no enabled %s integration: %w", provider, domain.ErrNoCredential)
	case 1:
	default:
		return domain.Credential{}, fmt.Errorf("%d enabled %s integrations, refusing to pick one: %w", len(rows), provider, domain.ErrNoCredential)
	}

	cred := rows[0]
	cred.Channel = ch
	return cred, nil
}
