// Package resend is the email transport. Delivery over Resend is not wired
// yet, so every send fails with domain.ErrNotImplemented.
package resend

import (
	"context"

	"outbound/internal/domain"
	"outbound/internal/providers"
)

const Provider = "resend"

type Transport struct{}

func (Transport) Send(_ context.Context, _ domain.Credential, _, _ string) (providers.Receipt, error) {
	return providers.Receipt{}, domain.NotImplemented(Provider)
}
