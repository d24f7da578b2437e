package backend

import (
	"net/url"
	"strconv"

	"telehealth-portal/internal/models"
)

// SortDirection of a list request
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort is a field,direction pair as the backend expects it.
type Sort struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

func (s Sort) String() string {
	return s.Field + "," + string(s.Direction)
}

// PageQuery is a paginated, filtered appointment list request for one viewer.
type PageQuery struct {
	Viewer     models.Viewer
	Status     models.AppointmentStatus
	DateFilter string
	Search     string
	Sort       Sort
	Page       int
	Size       int
}

func (q PageQuery) values() url.Values {
	v := url.Values{}
	v.Set("role", string(q.Viewer.Role))
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Status != "" && q.Status != models.StatusAll {
		v.Set("status", string(q.Status))
	}
	if q.DateFilter != "" && q.DateFilter != "all" {
		v.Set("dateFilter", q.DateFilter)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort.Field != "" {
		v.Set("sort", q.Sort.String())
	}
	return v
}

// Page is one page of appointments plus its metadata.
type Page struct {
	Content       []models.Appointment `json:"content"`
	Number        int                  `json:"number"`
	TotalPages    int                  `json:"totalPages"`
	TotalElements int                  `json:"totalElements"`
	Size          int                  `json:"size"`
}

// RescheduleRequest carries the newly chosen slot. The old date and time are not sent.
type RescheduleRequest struct {
	AppointmentDate string `json:"appointmentDate"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
}

// PaymentStatus is the processor-reported state of a booking payment
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

// Terminal reports whether no further transition is expected.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled:
		return true
	default:
		return false
	}
}

// Payment is the status record of one payment.
type Payment struct {
	ID            string        `json:"paymentId"`
	AppointmentID string        `json:"appointmentId,omitempty"`
	Status        PaymentStatus `json:"status"`
}
