package listing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
)

// Mode names how a list is backed.
type Mode string

const (
	ModePaginated Mode = "paginated"
	ModeStatic    Mode = "static"
)

// ParseMode defaults to paginated.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModePaginated:
		return ModePaginated, nil
	case ModeStatic:
		return ModeStatic, nil
	default:
		return "", fmt.Errorf("unknown list mode %q", s)
	}
}

// Source produces one page for a query.
type Source interface {
	Mode() Mode
	Fetch(ctx context.Context, viewer models.Viewer, q Query, now time.Time) (backend.Page, error)
}

// PageLister is the backend's paginated list operation.
type PageLister interface {
	ListAppointments(ctx context.Context, q backend.PageQuery) (backend.Page, error)
}

// AllLister returns the full candidate set of a viewer.
type AllLister interface {
	ListAllAppointments(ctx context.Context, viewer models.Viewer) ([]models.Appointment, error)
}

// PagedSource forwards every query to the backend and holds nothing.
type PagedSource struct {
	Lister PageLister
}

func (PagedSource) Mode() Mode { return ModePaginated }

func (s PagedSource) Fetch(ctx context.Context, viewer models.Viewer, q Query, _ time.Time) (backend.Page, error) {
	page, err := s.Lister.ListAppointments(ctx, q.pageQuery(viewer))
	if err != nil {
		return backend.Page{}, err
	}
	if page.Content == nil {
		page.Content = []models.Appointment{}
	}
	if page.Size == 0 {
		page.Size = q.PageSize
	}
	return page, nil
}

// StaticSource loads the viewer's full set and filters, sorts and pages it locally.
type StaticSource struct {
	All AllLister
}

func (StaticSource) Mode() Mode { return ModeStatic }

func (s StaticSource) Fetch(ctx context.Context, viewer models.Viewer, q Query, now time.Time) (backend.Page, error) {
	all, err := s.All.ListAllAppointments(ctx, viewer)
	if err != nil {
		return backend.Page{}, err
	}
	return Apply(all, q, viewer, now), nil
}

// Apply runs the local pipeline: filter, sort, then slice the requested page.
func Apply(all []models.Appointment, q Query, viewer models.Viewer, now time.Time) backend.Page {
	matched := Filter(all, q, viewer, now)
	SortAppointments(matched, q.Sort)
	return Paginate(matched, q.Page, q.PageSize)
}

// Set is a fixed candidate set, for lists embedded in another view that already hold
// their appointments.
type Set []models.Appointment

func (s Set) ListAllAppointments(context.Context, models.Viewer) ([]models.Appointment, error) {
	return slices.Clone(s), nil
}
