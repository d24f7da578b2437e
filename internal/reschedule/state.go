package reschedule

import (
	"telehealth-portal/internal/models"
)

// Phase names a step of the reschedule dialog
type Phase string

const (
	PhaseIdle                Phase = "IDLE"
	PhaseLoadingAvailability Phase = "LOADING_AVAILABILITY"
	PhaseDateListReady       Phase = "DATE_LIST_READY"
	PhaseLoadingSlots        Phase = "LOADING_SLOTS"
	PhaseSlotsReady          Phase = "SLOTS_READY"
	PhaseConfirmPending      Phase = "CONFIRM_PENDING"
)

// State is one of Idle, LoadingAvailability, DateListReady, LoadingSlots, SlotsReady or
// ConfirmPending. Each variant carries only the data that exists in that phase.
type State interface {
	Phase() Phase
}

// Idle: no dialog, nothing selected.
type Idle struct{}

// LoadingAvailability: the doctor's weekly availability is being fetched.
type LoadingAvailability struct{}

// DateListReady: candidate dates are known, none picked.
type DateListReady struct {
	Dates []CandidateDate
}

// LoadingSlots: a date is picked and its concrete slots are being fetched.
type LoadingSlots struct {
	Dates []CandidateDate
	Date  CandidateDate
}

// SlotsReady: the picked date's free slots are known, possibly none.
type SlotsReady struct {
	Dates []CandidateDate
	Date  CandidateDate
	Slots []models.TimeSlot
}

// ConfirmPending: a date and a slot are picked; the viewer may submit.
// Submitting is set while the reschedule request is in flight.
type ConfirmPending struct {
	Dates      []CandidateDate
	Date       CandidateDate
	Slots      []models.TimeSlot
	Slot       models.TimeSlot
	Submitting bool
}

func (Idle) Phase() Phase                { return PhaseIdle }
func (LoadingAvailability) Phase() Phase { return PhaseLoadingAvailability }
func (DateListReady) Phase() Phase       { return PhaseDateListReady }
func (LoadingSlots) Phase() Phase        { return PhaseLoadingSlots }
func (SlotsReady) Phase() Phase          { return PhaseSlotsReady }
func (ConfirmPending) Phase() Phase      { return PhaseConfirmPending }

// Severity of a notice
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notice is a dismissable message shown alongside the dialog.
type Notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Notice texts.
const (
	MsgAvailabilityFailed = "Could not load the doctor's availability. Close and try again."
	MsgNoDates            = "The doctor has no availability in the next 14 days"
	MsgNoSlots            = "No available slots for this date"
	MsgSlotsFailed        = "Could not load available slots for this date. Pick the date again to retry."
	MsgRescheduleFailed   = "Failed to reschedule the appointment. Please try again."
	MsgRescheduled        = "Appointment rescheduled successfully"
)

// Snapshot is the render-ready view of a session.
type Snapshot struct {
	SessionID     string              `json:"sessionId"`
	AppointmentID string              `json:"appointmentId"`
	DoctorID      string              `json:"doctorId"`
	Phase         Phase               `json:"phase"`
	Dates         []CandidateDate     `json:"dates"`
	SelectedDate  *CandidateDate      `json:"selectedDate,omitempty"`
	Slots         []models.TimeSlot   `json:"slots"`
	SelectedSlot  *models.TimeSlot    `json:"selectedSlot,omitempty"`
	Submitting    bool                `json:"submitting"`
	CanSelectDate bool                `json:"canSelectDate"`
	CanSubmit     bool                `json:"canSubmit"`
	Notice        *Notice             `json:"notice,omitempty"`
	Result        *models.Appointment `json:"result,omitempty"`
}

func snapshotOf(st State) Snapshot {
	snap := Snapshot{Phase: st.Phase(), Dates: []CandidateDate{}, Slots: []models.TimeSlot{}}
	switch s := st.(type) {
	case DateListReady:
		snap.Dates = s.Dates
	case LoadingSlots:
		snap.Dates = s.Dates
		snap.SelectedDate = &s.Date
	case SlotsReady:
		snap.Dates = s.Dates
		snap.SelectedDate = &s.Date
		snap.Slots = s.Slots
	case ConfirmPending:
		snap.Dates = s.Dates
		snap.SelectedDate = &s.Date
		snap.Slots = s.Slots
		snap.SelectedSlot = &s.Slot
		snap.Submitting = s.Submitting
		snap.CanSubmit = !s.Submitting
	}
	if snap.Dates == nil {
		snap.Dates = []CandidateDate{}
	}
	if snap.Slots == nil {
		snap.Slots = []models.TimeSlot{}
	}
	snap.CanSelectDate = len(snap.Dates) > 0 && !snap.Submitting
	return snap
}
