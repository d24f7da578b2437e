package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-portal/internal/models"
)

type countingSource struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (s *countingSource) DoctorAvailability(ctx context.Context, doctorID string) ([]models.AvailabilitySlot, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return []models.AvailabilitySlot{{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "12:00", Available: true}}, nil
}

func TestAvailability_ReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{}
	c := NewAvailability(rdb, src, time.Minute, nil, zerolog.Nop())

	ctx := context.Background()
	first, err := c.DoctorAvailability(ctx, "7")
	require.NoError(t, err)
	second, err := c.DoctorAvailability(ctx, "7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, mr.Exists("portal:availability:7"))

	mr.FastForward(2 * time.Minute)
	_, err = c.DoctorAvailability(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())

	require.NoError(t, c.Invalidate(ctx, "7"))
	assert.False(t, mr.Exists("portal:availability:7"))
}

func TestAvailability_CollapsesConcurrentMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{gate: make(chan struct{})}
	c := NewAvailability(rdb, src, time.Minute, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.DoctorAvailability(context.Background(), "7")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(2))
}

func TestAvailability_RedisDownFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	src := &countingSource{}
	c := NewAvailability(rdb, src, time.Minute, nil, zerolog.Nop())
	slots, err := c.DoctorAvailability(context.Background(), "7")
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestAvailability_SourceErrorNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{err: errors.New("backend down")}
	c := NewAvailability(rdb, src, time.Minute, nil, zerolog.Nop())

	_, err := c.DoctorAvailability(context.Background(), "7")
	require.Error(t, err)
	assert.False(t, mr.Exists("portal:availability:7"))
}

// ctxSource blocks until released and reports the context it was called with.
type ctxSource struct {
	calls   atomic.Int32
	release chan struct{}
	seenErr chan error
}

func (s *ctxSource) DoctorAvailability(ctx context.Context, doctorID string) ([]models.AvailabilitySlot, error) {
	s.calls.Add(1)
	<-s.release
	s.seenErr <- ctx.Err()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []models.AvailabilitySlot{{DayOfWeek: models.Friday, StartTime: "13:00", EndTime: "17:00", Available: true}}, nil
}

func TestAvailability_CancelledCallerDoesNotFailOthers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &ctxSource{release: make(chan struct{}), seenErr: make(chan error, 1)}
	c := NewAvailability(rdb, src, time.Minute, nil, zerolog.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.DoctorAvailability(firstCtx, "7")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		slots []models.AvailabilitySlot
		err   error
	}
	second := make(chan result, 1)
	go func() {
		slots, err := c.DoctorAvailability(context.Background(), "7")
		second <- result{slots, err}
	}()
	// Let the second caller join the in-flight load.
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(src.release)
	assert.NoError(t, <-src.seenErr, "shared load must not see the first caller's cancellation")
	got := <-second
	require.NoError(t, got.err)
	require.Len(t, got.slots, 1)
	assert.Equal(t, models.Friday, got.slots[0].DayOfWeek)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, mr.Exists("portal:availability:7"))
}
