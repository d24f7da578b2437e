// Package cache keeps doctors' weekly availability close to the portal.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/models"
)

const keyPrefix = "portal:availability:"

// DefaultLoadTimeout bounds a shared upstream load.
const DefaultLoadTimeout = 15 * time.Second

// AvailabilitySource answers availability lookups, usually the backend client.
type AvailabilitySource interface {
	DoctorAvailability(ctx context.Context, doctorID string) ([]models.AvailabilitySlot, error)
}

// Availability is a read-through redis cache in front of an AvailabilitySource.
// Concurrent misses for one doctor share a single upstream call.
type Availability struct {
	rdb    redis.UniversalClient
	source AvailabilitySource
	ttl    time.Duration
	// loadTimeout bounds the upstream call shared by concurrent misses.
	loadTimeout time.Duration
	group       singleflight.Group
	metrics     *metrics.PortalMetrics
	logger      zerolog.Logger
}

// NewAvailability wraps source with a cache stored in rdb for ttl.
func NewAvailability(rdb redis.UniversalClient, source AvailabilitySource, ttl time.Duration, m *metrics.PortalMetrics, logger zerolog.Logger) *Availability {
	return &Availability{rdb: rdb, source: source, ttl: ttl, loadTimeout: DefaultLoadTimeout, metrics: m, logger: logger}
}

// WithLoadTimeout sets the bound on a shared upstream load. Non-positive values are ignored.
func (a *Availability) WithLoadTimeout(d time.Duration) *Availability {
	if d > 0 {
		a.loadTimeout = d
	}
	return a
}

// DoctorAvailability returns the cached availability or loads and stores it.
// Redis failures fall back to the source.
func (a *Availability) DoctorAvailability(ctx context.Context, doctorID string) ([]models.AvailabilitySlot, error) {
	key := keyPrefix + doctorID

	raw, err := a.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var slots []models.AvailabilitySlot
		if jerr := json.Unmarshal(raw, &slots); jerr == nil {
			a.metrics.ObserveCache("hit")
			return slots, nil
		}
		a.logger.Warn().Str("doctor_id", doctorID).Msg("discarding undecodable availability cache entry")
	case errors.Is(err, redis.Nil):
	default:
		a.metrics.ObserveCache("error")
		a.logger.Warn().Err(err).Str("doctor_id", doctorID).Msg("availability cache read failed")
	}
	a.metrics.ObserveCache("miss")

	ch := a.group.DoChan(doctorID, func() (any, error) {
		// Shared by every waiting caller, so it must outlive the one that started it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.loadTimeout)
		defer cancel()
		slots, err := a.source.DoctorAvailability(loadCtx, doctorID)
		if err != nil {
			return nil, err
		}
		if payload, jerr := json.Marshal(slots); jerr == nil {
			if serr := a.rdb.Set(loadCtx, key, payload, a.ttl).Err(); serr != nil {
				a.logger.Warn().Err(serr).Str("doctor_id", doctorID).Msg("availability cache write failed")
			}
		}
		return slots, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.AvailabilitySlot), nil
	}
}

// Invalidate drops the cached availability of a doctor.
func (a *Availability) Invalidate(ctx context.Context, doctorID string) error {
	return a.rdb.Del(ctx, keyPrefix+doctorID).Err()
}
