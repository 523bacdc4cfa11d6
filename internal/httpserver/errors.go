package httpserver

import (
	"errors"
	"net/http"

	"outbound/internal/domain"
	"outbound/internal/service"
)

const (
	ErrInvalidJSON       = "invalid json"
	ErrMissingID         = "missing id"
	ErrDependency        = "dependency error"
	ErrNotFound          = "not found"
	ErrQueueDisabled     = "deferred sends not configured"
	ErrReportsDisabled   = "fanout reports not configured"
	ErrNoRecipientsGiven = "no recipients"
)

// statusFor maps service errors to a status code and a response body.
// Validation errors carry field detail, everything else a constant string.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNoRecipients):
		return http.StatusBadRequest, ErrNoRecipientsGiven
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, service.ErrQueueDisabled):
		return http.StatusServiceUnavailable, ErrQueueDisabled
	case errors.Is(err, service.ErrReportsDisabled):
		return http.StatusServiceUnavailable, ErrReportsDisabled
	default:
		return http.StatusBadGateway, ErrDependency
	}
}
