package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/models"
)

func TestListAppointments_ForwardsQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/user/42", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "patient", q.Get("role"))
		assert.Equal(t, "SCHEDULED", q.Get("status"))
		assert.Equal(t, "week", q.Get("dateFilter"))
		assert.Equal(t, "lane", q.Get("search"))
		assert.Equal(t, "appointmentDate,desc", q.Get("sort"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "5", q.Get("size"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"id": 11, "doctor": map[string]any{"id": 7, "name": "Dr. Lane"}, "patient_id": 42,
					"appointmentDate": "2026-10-20", "startTime": "09:00:00", "status": "SCHEDULED"},
			},
			"number":        2,
			"totalPages":    3,
			"totalElements": 11,
			"size":          5,
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	ctx := WithBearer(context.Background(), "tok")
	page, err := c.ListAppointments(ctx, PageQuery{
		Viewer:     models.NewViewer("42", "patient"),
		Status:     models.StatusScheduled,
		DateFilter: "week",
		Search:     "lane",
		Sort:       Sort{Field: "appointmentDate", Direction: SortDesc},
		Page:       2,
		Size:       5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 11, page.TotalElements)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "11", page.Content[0].ID)
	assert.Equal(t, "7", page.Content[0].DoctorID)
	assert.Equal(t, "42", page.Content[0].PatientID)
}

func TestListAppointments_OmitsSentinels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("status"))
		assert.False(t, q.Has("dateFilter"))
		assert.False(t, q.Has("search"))
		_, _ = io.WriteString(w, `{"content":null,"number":0,"totalPages":0,"totalElements":0,"size":10}`)
	}))
	defer ts.Close()

	page, err := NewClient(ts.URL).ListAppointments(context.Background(), PageQuery{
		Viewer:     models.NewViewer("7", "doctor"),
		Status:     models.StatusAll,
		DateFilter: "all",
		Size:       10,
	})
	require.NoError(t, err)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
}

func TestRescheduleAppointment_SendsOnlyNewSlot(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/appointments/a1/reschedule", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"appointmentDate": "2026-10-21", "startTime": "11:00", "endTime": "11:30"}, body)
		_, _ = io.WriteString(w, `{"status":200,"message":"ok","data":{"appointmentId":"a1","appointmentDate":"2026-10-21","startTime":"11:00","status":"SCHEDULED"}}`)
	}))
	defer ts.Close()

	out, err := NewClient(ts.URL).RescheduleAppointment(context.Background(), "a1", RescheduleRequest{
		AppointmentDate: "2026-10-21", StartTime: "11:00", EndTime: "11:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-21", out.AppointmentDate)
	assert.Equal(t, "11:00", out.StartTime)
}

func TestAPIError_ServerMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"Slot is no longer available"}`)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).CancelAppointment(context.Background(), "a1")
	require.Error(t, err)

	msg, ok := ServerMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Slot is no longer available", msg)
	assert.Equal(t, http.StatusConflict, StatusCode(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.False(t, apiErr.Temporary())
}

func TestAPIError_NotFoundAndHTMLBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html>nope</html>")
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetAppointment(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, ok := ServerMessage(err)
	assert.False(t, ok)
}

func TestDoctorAvailabilityAndSlots(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/availability/doctor/7":
			_, _ = io.WriteString(w, `[{"dayOfWeek":"MONDAY","startTime":"09:00","endTime":"12:00","available":true}]`)
		case "/api/availability/doctor/7/slots":
			assert.Equal(t, "2026-10-19", r.URL.Query().Get("date"))
			_, _ = io.WriteString(w, `[{"start_time":"09:00","end_time":"09:30"},{"startTime":"09:30","endTime":"10:00"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	avail, err := c.DoctorAvailability(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, models.Monday, avail[0].DayOfWeek)
	assert.True(t, avail[0].Available)

	slots, err := c.DoctorSlots(context.Background(), "7", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, []models.TimeSlot{{StartTime: "09:00", EndTime: "09:30"}, {StartTime: "09:30", EndTime: "10:00"}}, slots)
}

func TestPaymentStatusNormalizes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"completed"}`)
	}))
	defer ts.Close()

	p, err := NewClient(ts.URL).PaymentStatus(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, PaymentCompleted, p.Status)
	assert.True(t, p.Status.Terminal())
	assert.False(t, PaymentProcessing.Terminal())
}

func TestClientTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(ts.URL, WithTimeout(20*time.Millisecond), WithMetrics(m))
	_, err := c.DoctorAvailability(context.Background(), "7")
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}
