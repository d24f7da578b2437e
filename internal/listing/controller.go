package listing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/eligibility"
	"telehealth-portal/internal/models"
)

// MsgLoadFailed is shown when a page cannot be fetched.
const MsgLoadFailed = "Could not load appointments. Please try again."

var ErrInvalidPage = errors.New("page out of range")

// Item is one list row with the actions the viewer may take on it.
type Item struct {
	Appointment models.Appointment `json:"appointment"`
	Excerpt     string             `json:"excerpt"`
	Eligibility eligibility.Result `json:"eligibility"`
}

// View is the render-ready state of a list.
type View struct {
	Mode          Mode   `json:"mode"`
	Query         Query  `json:"query"`
	Items         []Item `json:"items"`
	CurrentPage   int    `json:"currentPage"`
	TotalPages    int    `json:"totalPages"`
	TotalElements int    `json:"totalElements"`
	PageSize      int    `json:"pageSize"`
	Notice        string `json:"notice,omitempty"`
}

// Controller owns one viewer's list state: the query and the page currently shown.
// The held page changes only when a fetch completes or a mutation is confirmed.
type Controller struct {
	source Source
	viewer models.Viewer
	clock  func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	query  Query
	page   backend.Page
	notice string
	seq    uint64
}

// NewController creates a controller with the default query and no page loaded.
func NewController(source Source, viewer models.Viewer, clock func() time.Time, logger zerolog.Logger) *Controller {
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		source: source,
		viewer: viewer,
		clock:  clock,
		logger: logger,
		query:  DefaultQuery(),
		page:   backend.Page{Content: []models.Appointment{}, Size: DefaultPageSize},
	}
}

func (c *Controller) Viewer() models.Viewer { return c.viewer }

// Query returns the current query.
func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller) SetStatus(s models.AppointmentStatus) { c.change(func(q *Query) { q.Status = s }) }
func (c *Controller) SetDateFilter(f DateFilter)          { c.change(func(q *Query) { q.DateFilter = f }) }
func (c *Controller) SetSearch(s string)                  { c.change(func(q *Query) { q.Search = s }) }
func (c *Controller) SetSort(s backend.Sort)              { c.change(func(q *Query) { q.Sort = s }) }

func (c *Controller) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	if n > MaxPageSize {
		n = MaxPageSize
	}
	c.change(func(q *Query) { q.PageSize = n })
}

// change applies a filter edit. Any edit that alters the query sends the list back
// to the first page.
func (c *Controller) change(edit func(q *Query)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.query
	edit(&c.query)
	if c.query == before {
		return false
	}
	c.query.Page = 0
	return true
}

// SetPage moves to page n without touching the filters.
func (c *Controller) SetPage(n int) error {
	if n < 0 || n > MaxPage {
		return ErrInvalidPage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query.Page = n
	return nil
}

// Update carries the query values a caller supplied; nil fields are left alone.
type Update struct {
	Status     *models.AppointmentStatus
	DateFilter *DateFilter
	Search     *string
	Sort       *backend.Sort
	PageSize   *int
	Page       *int
}

// Apply runs the setters for every supplied value. Page is honored only when no
// filter, sort or size changed, since those reset the list to its first page.
func (c *Controller) Apply(u Update) error {
	before := c.Query()
	if u.Status != nil {
		c.SetStatus(*u.Status)
	}
	if u.DateFilter != nil {
		c.SetDateFilter(*u.DateFilter)
	}
	if u.Search != nil {
		c.SetSearch(*u.Search)
	}
	if u.Sort != nil {
		c.SetSort(*u.Sort)
	}
	if u.PageSize != nil {
		c.SetPageSize(*u.PageSize)
	}
	after := c.Query()
	after.Page, before.Page = 0, 0
	if u.Page != nil && after == before {
		return c.SetPage(*u.Page)
	}
	return nil
}

// Load fetches the page for the query as it is now. When a newer load starts before
// this one returns, this one's result is dropped.
func (c *Controller) Load(ctx context.Context) (View, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	q := c.query
	c.mu.Unlock()

	page, err := c.source.Fetch(ctx, c.viewer, q, c.clock())

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return c.viewLocked(), nil
	}
	if err != nil {
		c.logger.Warn().Err(err).
			Str("viewer_id", c.viewer.ID).
			Str("mode", string(c.source.Mode())).
			Msg("appointment list fetch failed")
		c.page = backend.Page{Content: []models.Appointment{}, Number: q.Page, Size: q.PageSize}
		c.notice = MsgLoadFailed
		if msg, ok := backend.ServerMessage(err); ok {
			c.notice = msg
		}
		return c.viewLocked(), err
	}
	c.page = page
	c.notice = ""
	return c.viewLocked(), nil
}

// Refresh reloads with the current query. After a mutation this picks up any filter
// changes made while the mutation was in flight.
func (c *Controller) Refresh(ctx context.Context) (View, error) {
	return c.Load(ctx)
}

// View returns the current state without fetching.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	now := c.clock()
	items := make([]Item, 0, len(c.page.Content))
	for _, a := range c.page.Content {
		items = append(items, Item{
			Appointment: a,
			Excerpt:     a.Excerpt(models.DescriptionExcerptLength),
			Eligibility: eligibility.Evaluate(a, now, c.viewer),
		})
	}
	size := c.page.Size
	if size == 0 {
		size = c.query.PageSize
	}
	return View{
		Mode:          c.source.Mode(),
		Query:         c.query,
		Items:         items,
		CurrentPage:   c.page.Number,
		TotalPages:    c.page.TotalPages,
		TotalElements: c.page.TotalElements,
		PageSize:      size,
		Notice:        c.notice,
	}
}

// ApplyCancelled marks a held appointment cancelled after the backend confirmed it.
func (c *Controller) ApplyCancelled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.page.Content {
		if c.page.Content[i].ID == id {
			c.page.Content[i].Status = models.StatusCancelled
			return true
		}
	}
	return false
}

// ApplyRescheduled replaces a held appointment with the backend's updated record.
func (c *Controller) ApplyRescheduled(a models.Appointment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.page.Content {
		if c.page.Content[i].ID == a.ID {
			c.page.Content[i] = a
			return true
		}
	}
	return false
}
