package listing

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telehealth-portal/internal/models"
)

// DefaultIdleTTL is how long an untouched viewer list is kept.
const DefaultIdleTTL = 30 * time.Minute

type registered struct {
	ctrl    *Controller
	touched time.Time
}

// Registry keeps one Controller per viewer so filter state survives between requests.
type Registry struct {
	source Source
	clock  func() time.Time
	ttl    time.Duration
	logger zerolog.Logger

	mu    sync.Mutex
	lists map[string]*registered
}

func NewRegistry(source Source, clock func() time.Time, ttl time.Duration, logger zerolog.Logger) *Registry {
	if clock == nil {
		clock = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Registry{source: source, clock: clock, ttl: ttl, logger: logger, lists: make(map[string]*registered)}
}

func (r *Registry) Mode() Mode { return r.source.Mode() }

func key(v models.Viewer) string { return string(v.Role) + ":" + v.ID }

// For returns the viewer's controller, creating it with the default query.
func (r *Registry) For(viewer models.Viewer) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.sweepLocked(now)
	k := key(viewer)
	if e, ok := r.lists[k]; ok {
		e.touched = now
		return e.ctrl
	}
	c := NewController(r.source, viewer, r.clock, r.logger)
	r.lists[k] = &registered{ctrl: c, touched: now}
	return c
}

// Existing returns the viewer's controller only if one is live.
func (r *Registry) Existing(viewer models.Viewer) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(r.clock())
	e, ok := r.lists[key(viewer)]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// Len is the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

func (r *Registry) sweepLocked(now time.Time) {
	for k, e := range r.lists {
		if now.Sub(e.touched) > r.ttl {
			delete(r.lists, k)
		}
	}
}
