package contacts

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbound/internal/domain"
)

func mapSource(rows map[string]domain.Contact) SourceFunc {
	return func(_ context.Context, id string) (domain.Contact, error) {
		c, ok := rows[id]
		if !ok {
			return domain.Contact{}, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
		}
		return c, nil
	}
}

func TestResolverRoutesByKind(t *testing.T) {
	leads := mapSource(map[string]domain.Contact{"1": {ID: "1", Name: "Lead One", Email: "lead@example.com"}})
	customers := mapSource(map[string]domain.Contact{"1": {ID: "1", Name: "Cust One", Phone: "+15551234567"}})
	r := NewResolver(leads, customers)
	ctx := context.Background()

	c, err := r.Resolve(ctx, domain.ContactRef{ID: "1", Kind: domain.KindLead})
	require.NoError(t, err)
	assert.Equal(t, "Lead One", c.Name)
	assert.Equal(t, domain.KindLead, c.Kind)

	c, err = r.Resolve(ctx, domain.ContactRef{ID: "1", Kind: domain.KindCustomer})
	require.NoError(t, err)
	assert.Equal(t, "Cust One", c.Name)
	assert.Equal(t, domain.KindCustomer, c.Kind)
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver(mapSource(nil), mapSource(nil))

	_, err := r.Resolve(context.Background(), domain.ContactRef{ID: "missing", Kind: domain.KindCustomer})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Resolve(context.Background(), domain.ContactRef{ID: "1", Kind: "vendor"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolverReadsCurrentState(t *testing.T) {
	rows := map[string]domain.Contact{"7": {ID: "7", Name: "Before"}}
	r := NewResolver(mapSource(rows), mapSource(nil))

	c, err := r.Resolve(context.Background(), domain.ContactRef{ID: "7", Kind: domain.KindLead})
	require.NoError(t, err)
	assert.Equal(t, "Before", c.Name)

	rows["7"] = domain.Contact{ID: "7", Name: "After", Phone: "+1555"}
	c, err = r.Resolve(context.Background(), domain.ContactRef{ID: "7", Kind: domain.KindLead})
	require.NoError(t, err)
	assert.Equal(t, "After", c.Name)
}
