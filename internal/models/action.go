package models

// ActionType is a mutation the portal submits to the backend on the viewer's behalf
type ActionType string

const (
	ActionCancel     ActionType = "CANCEL"
	ActionReschedule ActionType = "RESCHEDULE"
)

// ActionOutcome records how the backend answered
type ActionOutcome string

const (
	OutcomeSucceeded ActionOutcome = "SUCCEEDED"
	OutcomeFailed    ActionOutcome = "FAILED"
)

// AppointmentAction is one audited cancel or reschedule attempt.
type AppointmentAction struct {
	BaseModel
	AppointmentID string        `gorm:"size:64;index" json:"appointmentId"`
	ActorID       string        `gorm:"size:64;index" json:"actorId"`
	ActorRole     Role          `gorm:"size:20" json:"actorRole"`
	Action        ActionType    `gorm:"size:20" json:"action"`
	PreviousDate  string        `gorm:"size:10" json:"previousDate"`
	PreviousStart string        `gorm:"size:8" json:"previousStart"`
	NewDate       string        `gorm:"size:10" json:"newDate,omitempty"`
	NewStart      string        `gorm:"size:8" json:"newStart,omitempty"`
	NewEnd        string        `gorm:"size:8" json:"newEnd,omitempty"`
	Outcome       ActionOutcome `gorm:"size:20" json:"outcome"`
	Message       string        `gorm:"type:text" json:"message,omitempty"`
}
