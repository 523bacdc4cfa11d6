// Package contacts resolves a tagged contact reference to its channel addresses.
package contacts

import (
	"context"
	"fmt"

	"outbound/internal/domain"
)

// Source looks a contact up in one backing table. Misses wrap domain.ErrNotFound.
type Source interface {
	Lookup(ctx context.Context, id string) (domain.Contact, error)
}

type SourceFunc func(ctx context.Context, id string) (domain.Contact, error)

func (f SourceFunc) Lookup(ctx context.Context, id string) (domain.Contact, error) { return f(ctx, id) }

// Resolver picks the source by contact kind. It never caches.
type Resolver struct {
	sources map[domain.ContactKind]Source
}

func NewResolver(leads, customers Source) *Resolver {
	return &Resolver{sources: map[domain.ContactKind]Source{
		domain.KindLead:     leads,
		domain.KindCustomer: customers,
	}}
}

func (r *Resolver) Resolve(ctx context.Context, ref domain.ContactRef) (domain.Contact, error) {
	src, ok := r.sources[ref.Kind]
	if !ok || src == nil {
		return domain.Contact{}, fmt.Errorf("contact kind %q: %w", ref.Kind, domain.ErrNotFound)
	}
	c, err := src.Lookup(ctx, ref.ID)
	if err != nil {
		return domain.Contact{}, err
	}
	c.Kind = ref.Kind
	return c, nil
}
