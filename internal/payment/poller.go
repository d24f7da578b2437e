// Package payment waits for a booking payment to reach a final status.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"telehealth-portal/internal/backend"
)

// ErrPollExhausted means every attempt saw a non-final status.
var ErrPollExhausted = errors.New("payment did not reach a final status")

var errNotFinal = errors.New("payment status is not final")

// StatusSource reads the current status of a payment.
type StatusSource interface {
	PaymentStatus(ctx context.Context, paymentID string) (backend.Payment, error)
}

// Policy bounds a poll: at most MaxAttempts reads, Interval apart.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPolicy polls for about 20 seconds.
var DefaultPolicy = Policy{MaxAttempts: 10, Interval: 2 * time.Second}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.Interval < 0 {
		p.Interval = DefaultPolicy.Interval
	}
	return p
}

type Poller struct {
	source StatusSource
	policy Policy
	logger zerolog.Logger
}

func NewPoller(source StatusSource, policy Policy, logger zerolog.Logger) *Poller {
	return &Poller{source: source, policy: policy.normalized(), logger: logger}
}

// Policy returns the effective policy.
func (p *Poller) Policy() Policy { return p.policy }

// Check reads the status once.
func (p *Poller) Check(ctx context.Context, paymentID string) (backend.Payment, error) {
	return p.source.PaymentStatus(ctx, paymentID)
}

// Await polls until the payment is COMPLETED, FAILED or CANCELLED. Transport errors and
// 5xx answers count as attempts and are retried; any other backend rejection ends the
// poll at once. When attempts run out the last seen payment is returned together with
// ErrPollExhausted.
func (p *Poller) Await(ctx context.Context, paymentID string) (backend.Payment, error) {
	var (
		last     backend.Payment
		attempts int
	)
	op := func() (backend.Payment, error) {
		attempts++
		pay, err := p.source.PaymentStatus(ctx, paymentID)
		if err != nil {
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return last, backoff.Permanent(err)
			}
			return last, err
		}
		last = pay
		if !pay.Status.Terminal() {
			return pay, errNotFinal
		}
		return pay, nil
	}

	pay, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.policy.Interval)),
		backoff.WithMaxTries(uint(p.policy.MaxAttempts)),
	)
	if err == nil {
		p.logger.Debug().
			Str("payment_id", paymentID).
			Str("status", string(pay.Status)).
			Int("attempts", attempts).
			Msg("payment reached final status")
		return pay, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return last, ctxErr
	}
	if errors.Is(err, errNotFinal) {
		p.logger.Info().
			Str("payment_id", paymentID).
			Str("status", string(last.Status)).
			Int("attempts", attempts).
			Msg("payment poll exhausted")
		return last, fmt.Errorf("%w after %d attempts, last status %s", ErrPollExhausted, attempts, last.Status)
	}
	return last, fmt.Errorf("poll payment %s: %w", paymentID, err)
}
