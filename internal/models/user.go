package models

import (
	"strings"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleUser    Role = "user"
)

// ParseRole normalizes a role claim. "user" is the legacy name for a patient account.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser:
		return RolePatient
	default:
		return r
	}
}

// Viewer is the authenticated user looking at an appointment.
type Viewer struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// NewViewer builds a Viewer with the role normalized.
func NewViewer(id, role string) Viewer {
	return Viewer{ID: strings.TrimSpace(id), Role: ParseRole(role)}
}

// Owns reports whether the viewer is the party of the appointment matching their role.
// Ids are compared as strings so numeric and textual ids match.
func (v Viewer) Owns(a Appointment) bool {
	if v.ID == "" {
		return false
	}
	switch ParseRole(string(v.Role)) {
	case RoleDoctor:
		return a.DoctorID != "" && v.ID == a.DoctorID
	case RolePatient:
		return a.PatientID != "" && v.ID == a.PatientID
	default:
		return false
	}
}

// CounterpartName returns the name of the other party, the one a viewer searches by.
func (v Viewer) CounterpartName(a Appointment) string {
	if ParseRole(string(v.Role)) == RoleDoctor {
		return a.PatientName
	}
	return a.DoctorName
}
