package listing

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
)

// Match reports whether a passes the status, date bucket and text predicates of q.
// Dates are compared as YYYY-MM-DD strings against now's local calendar date.
func Match(a models.Appointment, q Query, viewer models.Viewer, now time.Time) bool {
	return matchStatus(a, q.Status) &&
		matchDate(a, q.DateFilter, now) &&
		matchSearch(a, q.Search, viewer)
}

func matchStatus(a models.Appointment, status models.AppointmentStatus) bool {
	return status == "" || status == models.StatusAll || a.Status == status
}

func matchDate(a models.Appointment, filter DateFilter, now time.Time) bool {
	switch filter {
	case "", DateAll:
		return true
	case DateToday:
		return a.AppointmentDate == dayOffset(now, 0)
	case DateTomorrow:
		return a.AppointmentDate == dayOffset(now, 1)
	case DateWeek:
		if _, err := time.Parse(time.DateOnly, a.AppointmentDate); err != nil {
			return false
		}
		first := -int(now.Weekday())
		return a.AppointmentDate >= dayOffset(now, first) && a.AppointmentDate <= dayOffset(now, first+6)
	default:
		return false
	}
}

func dayOffset(now time.Time, days int) string {
	y, m, d := now.Date()
	return time.Date(y, m, d+days, 12, 0, 0, 0, now.Location()).Format(time.DateOnly)
}

func matchSearch(a models.Appointment, search string, viewer models.Viewer) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(viewer.CounterpartName(a)), strings.ToLower(search))
}

// Filter returns the members of all that Match q, in their original order.
func Filter(all []models.Appointment, q Query, viewer models.Viewer, now time.Time) []models.Appointment {
	out := make([]models.Appointment, 0, len(all))
	for _, a := range all {
		if Match(a, q, viewer, now) {
			out = append(out, a)
		}
	}
	return out
}

// SortAppointments orders list in place. Ties keep their input order.
func SortAppointments(list []models.Appointment, s backend.Sort) {
	compare := comparator(s.Field)
	slices.SortStableFunc(list, func(a, b models.Appointment) int {
		c := compare(a, b)
		if s.Direction == backend.SortDesc {
			return -c
		}
		return c
	})
}

func comparator(field string) func(a, b models.Appointment) int {
	switch field {
	case SortStatus:
		return func(a, b models.Appointment) int { return cmp.Compare(a.Status, b.Status) }
	case SortDoctorName:
		return func(a, b models.Appointment) int {
			return cmp.Compare(strings.ToLower(a.DoctorName), strings.ToLower(b.DoctorName))
		}
	case SortPatientName:
		return func(a, b models.Appointment) int {
			return cmp.Compare(strings.ToLower(a.PatientName), strings.ToLower(b.PatientName))
		}
	default:
		return func(a, b models.Appointment) int {
			if c := cmp.Compare(a.AppointmentDate, b.AppointmentDate); c != 0 {
				return c
			}
			return cmp.Compare(a.StartTime, b.StartTime)
		}
	}
}

// Paginate slices one page out of an already filtered and sorted list. A page past the
// end is empty but keeps its number.
func Paginate(list []models.Appointment, page, size int) backend.Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	total := len(list)
	out := backend.Page{
		Content:       []models.Appointment{},
		Number:        page,
		TotalElements: total,
		TotalPages:    (total + size - 1) / size,
		Size:          size,
	}
	if total == 0 || page > (total-1)/size {
		return out
	}
	start := page * size
	end := min(start+size, total)
	out.Content = slices.Clone(list[start:end])
	return out
}
