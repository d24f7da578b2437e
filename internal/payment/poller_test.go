package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-portal/internal/backend"
)

type step struct {
	status backend.PaymentStatus
	err    error
}

type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedSource) PaymentStatus(_ context.Context, id string) (backend.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	st := s.steps[i]
	if st.err != nil {
		return backend.Payment{}, st.err
	}
	return backend.Payment{ID: id, Status: st.status}, nil
}

var fast = Policy{MaxAttempts: 5, Interval: time.Millisecond}

func TestAwaitReachesFinalStatus(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{status: backend.PaymentPending},
		{status: backend.PaymentProcessing},
		{status: backend.PaymentCompleted},
	}}
	p := NewPoller(src, fast, zerolog.Nop())

	pay, err := p.Await(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, backend.PaymentCompleted, pay.Status)
	assert.Equal(t, 3, src.calls)
}

func TestAwaitFailedIsFinal(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: backend.PaymentFailed}}}
	pay, err := NewPoller(src, fast, zerolog.Nop()).Await(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, backend.PaymentFailed, pay.Status)
	assert.Equal(t, 1, src.calls)
}

func TestAwaitExhausted(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: backend.PaymentPending}}}
	pay, err := NewPoller(src, fast, zerolog.Nop()).Await(context.Background(), "pay-1")
	require.ErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, backend.PaymentPending, pay.Status)
	assert.Equal(t, 5, src.calls)
}

func TestAwaitRetriesTransientErrors(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: errors.New("connection reset")},
		{err: &backend.APIError{StatusCode: 502}},
		{status: backend.PaymentCancelled},
	}}
	pay, err := NewPoller(src, fast, zerolog.Nop()).Await(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, backend.PaymentCancelled, pay.Status)
}

func TestAwaitStopsOnClientError(t *testing.T) {
	src := &scriptedSource{steps: []step{{err: &backend.APIError{StatusCode: 404, Message: "Payment not found"}}}}
	_, err := NewPoller(src, fast, zerolog.Nop()).Await(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.NotErrorIs(t, err, ErrPollExhausted)
	assert.Equal(t, 1, src.calls)
}

func TestAwaitHonorsContext(t *testing.T) {
	src := &scriptedSource{steps: []step{{status: backend.PaymentProcessing}}}
	p := NewPoller(src, Policy{MaxAttempts: 100, Interval: 50 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx, "pay-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPolicyDefaults(t *testing.T) {
	p := NewPoller(&scriptedSource{}, Policy{}, zerolog.Nop())
	assert.Equal(t, DefaultPolicy.MaxAttempts, p.Policy().MaxAttempts)
}
