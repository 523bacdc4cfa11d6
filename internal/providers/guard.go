package providers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"outbound/internal/domain"
	"outbound/internal/observability"
)

const DefaultTimeout = 8 * time.Second

// Guard bounds a transport call with a timeout, an optional per-provider
// rate limit and an optional circuit breaker. It never retries.
type Guard struct {
	Provider string
	Next     Transport
	Timeout  time.Duration
	Limiter  *rate.Limiter
	Breaker  *gobreaker.CircuitBreaker
}

// NewBreaker trips after consecutive provider-side failures. Rejections of
// the request itself (4xx) do not count against the provider.
func NewBreaker(provider string, consecutiveFailures uint32, openFor time.Duration) *gobreaker.CircuitBreaker {
	if consecutiveFailures == 0 {
		consecutiveFailures = 10
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 3,
		Timeout:     openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= consecutiveFailures },
		IsSuccessful: func(err error) bool {
			var te *domain.TransportError
			if errors.As(err, &te) && te.HTTPStatus >= 400 && te.HTTPStatus < 500 && te.HTTPStatus != 408 && te.HTTPStatus != 429 {
				return true
			}
			return err == nil
		},
	})
}

func (g *Guard) Send(ctx context.Context, cred domain.Credential, to, body string) (Receipt, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rcpt, err := g.send(callCtx, cred, to, body)
	g.observe(rcpt, err, time.Since(start))
	return rcpt, err
}

func (g *Guard) send(ctx context.Context, cred domain.Credential, to, body string) (Receipt, error) {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return Receipt{}, &domain.TransportError{Provider: g.Provider, Code: "rate_limited", Message: "local rate limit wait exceeded call timeout", Err: err}
		}
	}

	call := func() (any, error) {
		return g.Next.Send(ctx, cred, to, body)
	}
	var (
		res any
		err error
	)
	if g.Breaker != nil {
		res, err = g.Breaker.Execute(call)
	} else {
		res, err = call()
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Receipt{}, &domain.TransportError{Provider: g.Provider, Code: "circuit_open", Message: "provider circuit open", Err: err}
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Receipt{}, &domain.TransportError{Provider: g.Provider, Code: "timeout", Message: "provider call timed out", Err: err}
		}
		var te *domain.TransportError
		if !errors.As(err, &te) {
			err = &domain.TransportError{Provider: g.Provider, Err: err}
		}
		return Receipt{}, err
	}
	rcpt, _ := res.(Receipt)
	return rcpt, nil
}

func (g *Guard) observe(rcpt Receipt, err error, took time.Duration) {
	result, status := "ok", rcpt.HTTPStatus
	if err != nil {
		result = "error"
		var te *domain.TransportError
		if errors.As(err, &te) {
			status = te.HTTPStatus
			if te.Code == "timeout" || te.Code == "circuit_open" || te.Code == "rate_limited" {
				result = te.Code
			}
		}
	}
	observability.TransportSend.WithLabelValues(g.Provider, result, strconv.Itoa(status)).Inc()
	observability.TransportLatency.WithLabelValues(g.Provider).Observe(took.Seconds())
}
