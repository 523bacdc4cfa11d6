// Package providers holds the transport abstraction shared by every
// (channel, provider) implementation and the guard that bounds each call.
package providers

import (
	"context"

	"outbound/internal/domain"
)

// Receipt is what a provider returns for an accepted send.
type Receipt struct {
	Provider      string
	ProviderMsgID string
	HTTPStatus    int
}

// Transport sends body to address using a credential bundle. Failures are
// *domain.TransportError.
type Transport interface {
	Send(ctx context.Context, cred domain.Credential, to, body string) (Receipt, error)
}

type Registry struct {
	transports map[string]Transport
}

func NewRegistry() *Registry {
	return &Registry{transports: map[string]Transport{}}
}

// Register binds a provider name (as stored in integrations.provider) to t.
func (r *Registry) Register(provider string, t Transport) *Registry {
	r.transports[provider] = t
	return r
}

func (r *Registry) Lookup(provider string) (Transport, bool) {
	t, ok := r.transports[provider]
	return t, ok
}
