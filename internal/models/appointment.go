package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// AppointmentStatus represents the server-reported status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusPending   AppointmentStatus = "PENDING"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"

	// StatusAll is the filter sentinel matching every status. It never appears on a record.
	StatusAll AppointmentStatus = "ALL"
)

// Statuses lists the closed set of appointment statuses in display order.
var Statuses = []AppointmentStatus{StatusScheduled, StatusPending, StatusCompleted, StatusCancelled}

// ParseStatus upper-cases s and reports whether it names a known status or the ALL sentinel.
func ParseStatus(s string) (AppointmentStatus, bool) {
	st := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st == StatusAll {
		return st, true
	}
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return st, false
}

// Appointment is the canonical appointment shape used everywhere inside the portal.
// Upstream records arrive in several shapes and are normalized once by UnmarshalJSON.
type Appointment struct {
	ID              string            `json:"appointmentId"`
	DoctorID        string            `json:"doctorId"`
	DoctorName      string            `json:"doctorName"`
	PatientID       string            `json:"patientId"`
	PatientName     string            `json:"patientName"`
	AppointmentDate string            `json:"appointmentDate"`
	StartTime       string            `json:"startTime"`
	EndTime         string            `json:"endTime"`
	Status          AppointmentStatus `json:"status"`
	Description     string            `json:"description"`
	PaymentID       string            `json:"paymentId,omitempty"`
}

// DescriptionExcerptLength bounds the description shown in list rows.
const DescriptionExcerptLength = 100

// Excerpt returns the description cut to at most n runes, with an ellipsis when truncated.
func (a Appointment) Excerpt(n int) string {
	if n <= 0 || utf8.RuneCountInString(a.Description) <= n {
		return a.Description
	}
	runes := []rune(a.Description)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// flexID accepts a JSON string or number and keeps its textual form.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// partyWire is a nested doctor/patient object as some endpoints embed it.
type partyWire struct {
	ID        flexID `json:"id"`
	UserID    flexID `json:"userId"`
	Name      string `json:"name"`
	FullName  string `json:"fullName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	User      *struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"user"`
}

func (p *partyWire) id() string {
	if p == nil {
		return ""
	}
	return firstNonEmpty(string(p.ID), string(p.UserID))
}

func (p *partyWire) name() string {
	if p == nil {
		return ""
	}
	full := strings.TrimSpace(p.FirstName + " " + p.LastName)
	nested := ""
	if p.User != nil {
		nested = strings.TrimSpace(p.User.FirstName + " " + p.User.LastName)
	}
	return firstNonEmpty(p.Name, p.FullName, full, nested)
}

type appointmentWire struct {
	AppointmentID      flexID     `json:"appointmentId"`
	AppointmentIDSnake flexID     `json:"appointment_id"`
	ID                 flexID     `json:"id"`
	DoctorID           flexID     `json:"doctorId"`
	DoctorIDSnake      flexID     `json:"doctor_id"`
	Doctor             *partyWire `json:"doctor"`
	DoctorName         string     `json:"doctorName"`
	DoctorNameSnake    string     `json:"doctor_name"`
	PatientID          flexID     `json:"patientId"`
	PatientIDSnake     flexID     `json:"patient_id"`
	Patient            *partyWire `json:"patient"`
	PatientName        string     `json:"patientName"`
	PatientNameSnake   string     `json:"patient_name"`
	AppointmentDate    string     `json:"appointmentDate"`
	AppointmentDateSn  string     `json:"appointment_date"`
	StartTime          string     `json:"startTime"`
	StartTimeSnake     string     `json:"start_time"`
	EndTime            string     `json:"endTime"`
	EndTimeSnake       string     `json:"end_time"`
	Status             string     `json:"status"`
	Description        string     `json:"description"`
	Reason             string     `json:"reason"`
	ReasonForVisit     string     `json:"reasonForVisit"`
	PaymentID          flexID     `json:"paymentId"`
	PaymentIDSnake     flexID     `json:"payment_id"`
}

// UnmarshalJSON normalizes camelCase, snake_case and nested-object record shapes.
func (a *Appointment) UnmarshalJSON(data []byte) error {
	var w appointmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Appointment{
		ID:              firstNonEmpty(string(w.AppointmentID), string(w.AppointmentIDSnake), string(w.ID)),
		DoctorID:        firstNonEmpty(string(w.DoctorID), string(w.DoctorIDSnake), w.Doctor.id()),
		DoctorName:      firstNonEmpty(w.DoctorName, w.DoctorNameSnake, w.Doctor.name()),
		PatientID:       firstNonEmpty(string(w.PatientID), string(w.PatientIDSnake), w.Patient.id()),
		PatientName:     firstNonEmpty(w.PatientName, w.PatientNameSnake, w.Patient.name()),
		AppointmentDate: strings.TrimSpace(firstNonEmpty(w.AppointmentDate, w.AppointmentDateSn)),
		StartTime:       strings.TrimSpace(firstNonEmpty(w.StartTime, w.StartTimeSnake)),
		EndTime:         strings.TrimSpace(firstNonEmpty(w.EndTime, w.EndTimeSnake)),
		Status:          AppointmentStatus(strings.ToUpper(strings.TrimSpace(w.Status))),
		Description:     firstNonEmpty(w.Description, w.Reason, w.ReasonForVisit),
		PaymentID:       firstNonEmpty(string(w.PaymentID), string(w.PaymentIDSnake)),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
