// Package listing presents one filter, sort and pagination contract for appointment
// lists, backed either by the scheduling backend's paging or by a locally held set.
package listing

import (
	"strings"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
)

// DateFilter buckets appointments by calendar date relative to today.
type DateFilter string

const (
	DateAll      DateFilter = "all"
	DateToday    DateFilter = "today"
	DateTomorrow DateFilter = "tomorrow"
	DateWeek     DateFilter = "week"
)

// ParseDateFilter is case-insensitive; anything unknown is rejected.
func ParseDateFilter(s string) (DateFilter, bool) {
	switch f := DateFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case DateAll, DateToday, DateTomorrow, DateWeek:
		return f, true
	case "":
		return DateAll, true
	default:
		return "", false
	}
}

// Sortable fields.
const (
	SortAppointmentDate = "appointmentDate"
	SortStatus          = "status"
	SortDoctorName      = "doctorName"
	SortPatientName     = "patientName"
)

var sortFields = []string{SortAppointmentDate, SortStatus, SortDoctorName, SortPatientName}

// DefaultPageSize of a dashboard page
const DefaultPageSize = 10

// MaxPageSize bounds what a caller may request.
const MaxPageSize = 100

// MaxPage is the highest page number a caller may request.
const MaxPage = 100000

// DefaultSort is appointment date, newest first.
var DefaultSort = backend.Sort{Field: SortAppointmentDate, Direction: backend.SortDesc}

// ParseSort reads "field,direction". The direction defaults to asc when omitted.
func ParseSort(s string) (backend.Sort, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort, true
	}
	field, dir, _ := strings.Cut(s, ",")
	field = strings.TrimSpace(field)
	known := false
	for _, f := range sortFields {
		if f == field {
			known = true
			break
		}
	}
	if !known {
		return backend.Sort{}, false
	}
	switch backend.SortDirection(strings.ToLower(strings.TrimSpace(dir))) {
	case "", backend.SortAsc:
		return backend.Sort{Field: field, Direction: backend.SortAsc}, true
	case backend.SortDesc:
		return backend.Sort{Field: field, Direction: backend.SortDesc}, true
	default:
		return backend.Sort{}, false
	}
}

// Query is the full filter, sort and page state of a list.
type Query struct {
	Status     models.AppointmentStatus `json:"status"`
	DateFilter DateFilter               `json:"dateFilter"`
	Search     string                   `json:"search"`
	Sort       backend.Sort             `json:"sort"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"pageSize"`
}

// DefaultQuery is the state of a freshly opened list.
func DefaultQuery() Query {
	return Query{
		Status:     models.StatusAll,
		DateFilter: DateAll,
		Sort:       DefaultSort,
		Page:       0,
		PageSize:   DefaultPageSize,
	}
}

func (q Query) pageQuery(viewer models.Viewer) backend.PageQuery {
	return backend.PageQuery{
		Viewer:     viewer,
		Status:     q.Status,
		DateFilter: string(q.DateFilter),
		Search:     q.Search,
		Sort:       q.Sort,
		Page:       q.Page,
		Size:       q.PageSize,
	}
}

// Option is one selectable filter value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// StatusOptions lists the status filter values, ALL first.
func StatusOptions() []Option {
	return []Option{
		{Value: string(models.StatusAll), Label: "All statuses"},
		{Value: string(models.StatusScheduled), Label: "Scheduled"},
		{Value: string(models.StatusPending), Label: "Pending"},
		{Value: string(models.StatusCompleted), Label: "Completed"},
		{Value: string(models.StatusCancelled), Label: "Cancelled"},
	}
}

// DateFilterOptions lists the date bucket values, all first.
func DateFilterOptions() []Option {
	return []Option{
		{Value: string(DateAll), Label: "All dates"},
		{Value: string(DateToday), Label: "Today"},
		{Value: string(DateTomorrow), Label: "Tomorrow"},
		{Value: string(DateWeek), Label: "This week"},
	}
}
