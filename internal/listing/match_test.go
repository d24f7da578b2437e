package listing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
)

var clinic = time.FixedZone("clinic", 2*60*60)

// Wednesday 2026-10-14 23:30 local; already the 15th in UTC.
func fixedNow() time.Time { return time.Date(2026, 10, 14, 23, 30, 0, 0, clinic) }

var patient = models.NewViewer("42", "patient")

func seed() []models.Appointment {
	return []models.Appointment{
		{ID: "1", DoctorName: "Dr. Alice Stone", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-14", StartTime: "09:00", Status: models.StatusScheduled},
		{ID: "2", DoctorName: "Dr. Bob Reed", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-15", StartTime: "10:00", Status: models.StatusScheduled},
		{ID: "3", DoctorName: "Dr. alice Wong", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-11", StartTime: "08:00", Status: models.StatusCompleted},
		{ID: "4", DoctorName: "Dr. Carl Diaz", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-17", StartTime: "16:00", Status: models.StatusPending},
		{ID: "5", DoctorName: "Dr. Bob Reed", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-18", StartTime: "11:00", Status: models.StatusScheduled},
		{ID: "6", DoctorName: "Dr. Dana Fox", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-10", StartTime: "12:00", Status: models.StatusCancelled},
		{ID: "7", DoctorName: "Dr. Alice Stone", PatientName: "Pat One", PatientID: "42", AppointmentDate: "2026-10-14", StartTime: "15:00", Status: models.StatusCancelled},
		{ID: "8", DoctorName: "Dr. Eve Hart", PatientName: "Pat One", PatientID: "42", AppointmentDate: "not-a-date", StartTime: "15:00", Status: models.StatusScheduled},
	}
}

func ids(list []models.Appointment) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestMatch_DateBuckets(t *testing.T) {
	tests := []struct {
		filter DateFilter
		want   []string
	}{
		{DateAll, []string{"1", "2", "3", "4", "5", "6", "7", "8"}},
		{DateToday, []string{"1", "7"}},
		{DateTomorrow, []string{"2"}},
		// Week of Sunday 2026-10-11 through Saturday 2026-10-17.
		{DateWeek, []string{"1", "2", "3", "4", "7"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			q := DefaultQuery()
			q.DateFilter = tt.filter
			assert.Equal(t, tt.want, ids(Filter(seed(), q, patient, fixedNow())))
		})
	}
}

func TestMatch_WeekOnSunday(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 0, 5, 0, 0, clinic)
	q := DefaultQuery()
	q.DateFilter = DateWeek
	assert.Equal(t, []string{"5"}, ids(Filter(seed(), q, patient, sunday)))
}

func TestMatch_StatusAndSearch(t *testing.T) {
	q := DefaultQuery()
	q.Status = models.StatusScheduled
	q.Search = "  ALICE "
	assert.Equal(t, []string{"1"}, ids(Filter(seed(), q, patient, fixedNow())))

	q.Status = models.StatusAll
	assert.Equal(t, []string{"1", "3", "7"}, ids(Filter(seed(), q, patient, fixedNow())))

	// Doctors search by patient name.
	doctor := models.NewViewer("9", "DOCTOR")
	q.Search = "pat one"
	assert.Len(t, Filter(seed(), q, doctor, fixedNow()), 8)
	q.Search = "alice"
	assert.Empty(t, Filter(seed(), q, doctor, fixedNow()))
}

func TestSortAppointments(t *testing.T) {
	list := seed()[:5]
	SortAppointments(list, DefaultSort)
	assert.Equal(t, []string{"5", "4", "2", "1", "3"}, ids(list))

	SortAppointments(list, backend.Sort{Field: SortDoctorName, Direction: backend.SortAsc})
	assert.Equal(t, []string{"1", "3", "5", "2", "4"}, ids(list))

	SortAppointments(list, backend.Sort{Field: SortStatus, Direction: backend.SortAsc})
	assert.Equal(t, []string{"3", "4", "1", "5", "2"}, ids(list))
}

func TestPaginate(t *testing.T) {
	list := seed()
	p := Paginate(list, 1, 3)
	assert.Equal(t, []string{"4", "5", "6"}, ids(p.Content))
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 8, p.TotalElements)

	p = Paginate(list, 5, 3)
	assert.Empty(t, p.Content)
	assert.Equal(t, 5, p.Number)

	p = Paginate(nil, 0, 10)
	assert.Equal(t, 0, p.TotalPages)
	assert.NotNil(t, p.Content)
}

func TestPaginateHugePageIsEmpty(t *testing.T) {
	p := Paginate(seed(), 922337203685477581, 10)
	assert.Empty(t, p.Content)
	assert.Equal(t, 922337203685477581, p.Number)
	assert.Equal(t, 1, p.TotalPages)
}

func TestParseSortAndFilters(t *testing.T) {
	s, ok := ParseSort("doctorName,DESC")
	require.True(t, ok)
	assert.Equal(t, backend.Sort{Field: SortDoctorName, Direction: backend.SortDesc}, s)

	s, ok = ParseSort("status")
	require.True(t, ok)
	assert.Equal(t, backend.SortAsc, s.Direction)

	_, ok = ParseSort("password,asc")
	assert.False(t, ok)
	_, ok = ParseSort("status,sideways")
	assert.False(t, ok)

	f, ok := ParseDateFilter("Week")
	require.True(t, ok)
	assert.Equal(t, DateWeek, f)
	_, ok = ParseDateFilter("yesterday")
	assert.False(t, ok)
}

// referenceBackend filters by instants the way a server with its own date logic would,
// so it shares no code with Match.
type referenceBackend struct {
	all []models.Appointment
	now time.Time
}

func (r referenceBackend) ListAppointments(_ context.Context, q backend.PageQuery) (backend.Page, error) {
	midnight := time.Date(r.now.Year(), r.now.Month(), r.now.Day(), 0, 0, 0, 0, r.now.Location())
	var out []models.Appointment
	for _, a := range r.all {
		if q.Status != "" && q.Status != models.StatusAll && q.Status != a.Status {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", a.AppointmentDate, r.now.Location())
		if q.DateFilter != "" && q.DateFilter != "all" {
			if err != nil {
				continue
			}
			var from, to time.Time
			switch q.DateFilter {
			case "today":
				from, to = midnight, midnight.AddDate(0, 0, 1)
			case "tomorrow":
				from, to = midnight.AddDate(0, 0, 1), midnight.AddDate(0, 0, 2)
			case "week":
				from = midnight.AddDate(0, 0, -int(midnight.Weekday()))
				to = from.AddDate(0, 0, 7)
			}
			if day.Before(from) || !day.Before(to) {
				continue
			}
		}
		out = append(out, a)
	}
	return backend.Page{Content: out, Number: 0, TotalPages: 1, TotalElements: len(out), Size: q.Size}, nil
}

func TestModesAgreeOnStatusAndDateFilters(t *testing.T) {
	now := fixedNow()
	paged := PagedSource{Lister: referenceBackend{all: seed(), now: now}}
	static := StaticSource{All: Set(seed())}

	statuses := append([]models.AppointmentStatus{models.StatusAll}, models.Statuses...)
	for _, status := range statuses {
		for _, opt := range DateFilterOptions() {
			q := DefaultQuery()
			q.Status = status
			q.DateFilter = DateFilter(opt.Value)
			q.PageSize = MaxPageSize
			t.Run(fmt.Sprintf("%s/%s", status, opt.Value), func(t *testing.T) {
				p1, err := paged.Fetch(context.Background(), patient, q, now)
				require.NoError(t, err)
				p2, err := static.Fetch(context.Background(), patient, q, now)
				require.NoError(t, err)
				assert.ElementsMatch(t, ids(p1.Content), ids(p2.Content))
				assert.Equal(t, p1.TotalElements, p2.TotalElements)
			})
		}
	}
}

func TestModesExposeSameOptions(t *testing.T) {
	assert.Len(t, StatusOptions(), len(models.Statuses)+1)
	assert.Equal(t, string(models.StatusAll), StatusOptions()[0].Value)
	for _, opt := range DateFilterOptions() {
		_, ok := ParseDateFilter(opt.Value)
		assert.True(t, ok, opt.Value)
	}
}
