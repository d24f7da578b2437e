// Package reschedule drives the two-phase date then slot selection for moving an
// appointment, and submits the chosen slot.
package reschedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/models"
)

var (
	ErrAlreadyOpen     = errors.New("reschedule dialog is already open")
	ErrNotOpen         = errors.New("reschedule dialog is not open")
	ErrDatesNotReady   = errors.New("available dates are still loading")
	ErrUnknownDate     = errors.New("date is not one of the available dates")
	ErrSlotsNotReady   = errors.New("pick a date and wait for its slots first")
	ErrUnknownSlot     = errors.New("slot is not one of the available slots")
	ErrNothingToSubmit = errors.New("pick a date and a slot before submitting")
	ErrSubmitInFlight  = errors.New("reschedule is already being submitted")
)

// AvailabilitySource loads a doctor's weekly availability.
type AvailabilitySource interface {
	DoctorAvailability(ctx context.Context, doctorID string) ([]models.AvailabilitySlot, error)
}

// SlotSource loads a doctor's free slots on one date.
type SlotSource interface {
	DoctorSlots(ctx context.Context, doctorID, date string) ([]models.TimeSlot, error)
}

// Submitter sends a reschedule to the backend.
type Submitter interface {
	RescheduleAppointment(ctx context.Context, id string, req backend.RescheduleRequest) (models.Appointment, error)
}

// Outcome describes one finished submission.
type Outcome struct {
	SessionID string
	Viewer    models.Viewer
	Before    models.Appointment
	Request   backend.RescheduleRequest
	After     models.Appointment
	Err       error
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Availability AvailabilitySource
	Slots        SlotSource
	Submitter    Submitter
	// Clock returns the current time in the clinic's local zone.
	Clock func() time.Time
	// OnSubmit runs after every submission, outside the session lock.
	OnSubmit func(ctx context.Context, o Outcome)
	Metrics  *metrics.PortalMetrics
	Logger   zerolog.Logger
}

// Session is one reschedule attempt for one appointment by one viewer.
// It is safe for concurrent use; overlapping calls are ordered by the session lock
// and responses superseded by a newer call are dropped.
type Session struct {
	id          string
	appointment models.Appointment
	viewer      models.Viewer
	deps        Deps

	mu         sync.Mutex
	state      State
	notice     *Notice
	result     *models.Appointment
	generation uint64
	slotSeq    uint64
}

// NewSession creates an idle session.
func NewSession(id string, appt models.Appointment, viewer models.Viewer, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Session{id: id, appointment: appt, viewer: viewer, deps: deps, state: Idle{}}
}

func (s *Session) ID() string                      { return s.id }
func (s *Session) Appointment() models.Appointment { return s.appointment }
func (s *Session) Viewer() models.Viewer           { return s.viewer }

// State returns the current state variant.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the render-ready view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := snapshotOf(s.state)
	snap.SessionID = s.id
	snap.AppointmentID = s.appointment.ID
	snap.DoctorID = s.appointment.DoctorID
	snap.Notice = s.notice
	snap.Result = s.result
	return snap
}

// Open moves Idle to LoadingAvailability, fetches the doctor's weekly availability and
// projects it on the next HorizonDays days. A failed fetch leaves an empty date list and
// an error notice rather than an error.
func (s *Session) Open(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if _, idle := s.state.(Idle); !idle {
		s.mu.Unlock()
		return s.Snapshot(), ErrAlreadyOpen
	}
	s.generation++
	gen := s.generation
	s.state = LoadingAvailability{}
	s.notice = nil
	s.result = nil
	s.mu.Unlock()

	slots, err := s.deps.Availability.DoctorAvailability(ctx, s.appointment.DoctorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.deps.Metrics.StaleDiscarded()
		return s.snapshotLocked(), nil
	}
	if err != nil {
		s.deps.Logger.Warn().Err(err).
			Str("session_id", s.id).
			Str("doctor_id", s.appointment.DoctorID).
			Msg("doctor availability fetch failed")
		s.state = DateListReady{Dates: []CandidateDate{}}
		s.notice = &Notice{Severity: SeverityError, Message: MsgAvailabilityFailed}
		return s.snapshotLocked(), nil
	}

	dates := ProjectDates(slots, s.deps.Clock(), HorizonDays)
	s.state = DateListReady{Dates: dates}
	if len(dates) == 0 {
		s.notice = &Notice{Severity: SeverityInfo, Message: MsgNoDates}
	}
	return s.snapshotLocked(), nil
}

// SelectDate picks a candidate date and fetches its free slots. If another date is picked
// while this fetch is outstanding, this fetch's result is dropped when it arrives.
func (s *Session) SelectDate(ctx context.Context, date string) (Snapshot, error) {
	s.mu.Lock()
	var dates []CandidateDate
	switch st := s.state.(type) {
	case Idle:
		s.mu.Unlock()
		return s.Snapshot(), ErrNotOpen
	case LoadingAvailability:
		s.mu.Unlock()
		return s.Snapshot(), ErrDatesNotReady
	case DateListReady:
		dates = st.Dates
	case LoadingSlots:
		dates = st.Dates
	case SlotsReady:
		dates = st.Dates
	case ConfirmPending:
		if st.Submitting {
			s.mu.Unlock()
			return s.Snapshot(), ErrSubmitInFlight
		}
		dates = st.Dates
	}
	picked, ok := findDate(dates, date)
	if !ok {
		s.mu.Unlock()
		return s.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownDate, date)
	}
	s.slotSeq++
	seq, gen := s.slotSeq, s.generation
	s.state = LoadingSlots{Dates: dates, Date: picked}
	s.notice = nil
	s.mu.Unlock()

	slots, err := s.deps.Slots.DoctorSlots(ctx, s.appointment.DoctorID, picked.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || seq != s.slotSeq {
		s.deps.Metrics.StaleDiscarded()
		s.deps.Logger.Debug().
			Str("session_id", s.id).
			Str("date", picked.Date).
			Msg("dropping superseded slot response")
		return s.snapshotLocked(), nil
	}
	if err != nil {
		s.deps.Logger.Warn().Err(err).
			Str("session_id", s.id).
			Str("date", picked.Date).
			Msg("doctor slots fetch failed")
		s.state = SlotsReady{Dates: dates, Date: picked, Slots: []models.TimeSlot{}}
		s.notice = &Notice{Severity: SeverityError, Message: MsgSlotsFailed}
		return s.snapshotLocked(), nil
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	s.state = SlotsReady{Dates: dates, Date: picked, Slots: slots}
	if len(slots) == 0 {
		s.notice = &Notice{Severity: SeverityInfo, Message: MsgNoSlots}
	}
	return s.snapshotLocked(), nil
}

// SelectSlot picks one of the free slots of the selected date, identified by start time.
func (s *Session) SelectSlot(startTime string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next ConfirmPending
	switch st := s.state.(type) {
	case SlotsReady:
		next = ConfirmPending{Dates: st.Dates, Date: st.Date, Slots: st.Slots}
	case ConfirmPending:
		if st.Submitting {
			return s.snapshotLocked(), ErrSubmitInFlight
		}
		next = ConfirmPending{Dates: st.Dates, Date: st.Date, Slots: st.Slots}
	case Idle:
		return s.snapshotLocked(), ErrNotOpen
	default:
		return s.snapshotLocked(), ErrSlotsNotReady
	}
	slot, ok := findSlot(next.Slots, startTime)
	if !ok {
		return s.snapshotLocked(), fmt.Errorf("%w: %s", ErrUnknownSlot, startTime)
	}
	next.Slot = slot
	s.state = next
	s.notice = nil
	return s.snapshotLocked(), nil
}

// Submit sends the selected date and slot to the backend. The appointment's previous
// date and time are not part of the request. On success the session returns to Idle; on
// failure it stays in ConfirmPending with an error notice and may be submitted again.
func (s *Session) Submit(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	pending, ok := s.state.(ConfirmPending)
	switch {
	case !ok:
		s.mu.Unlock()
		return s.Snapshot(), ErrNothingToSubmit
	case pending.Submitting:
		s.mu.Unlock()
		return s.Snapshot(), ErrSubmitInFlight
	}
	pending.Submitting = true
	s.state = pending
	s.notice = nil
	gen := s.generation
	s.mu.Unlock()

	req := backend.RescheduleRequest{
		AppointmentDate: pending.Date.Date,
		StartTime:       pending.Slot.StartTime,
		EndTime:         pending.Slot.EndTime,
	}
	updated, err := s.deps.Submitter.RescheduleAppointment(ctx, s.appointment.ID, req)

	s.mu.Lock()
	if gen == s.generation {
		if err != nil {
			pending.Submitting = false
			s.state = pending
			msg, found := backend.ServerMessage(err)
			if !found {
				msg = MsgRescheduleFailed
			}
			s.notice = &Notice{Severity: SeverityError, Message: msg}
		} else {
			s.generation++
			s.state = Idle{}
			s.result = &updated
			s.notice = &Notice{Severity: SeveritySuccess, Message: MsgRescheduled}
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.deps.OnSubmit != nil {
		s.deps.OnSubmit(ctx, Outcome{
			SessionID: s.id,
			Viewer:    s.viewer,
			Before:    s.appointment,
			Request:   req,
			After:     updated,
			Err:       err,
		})
	}
	if err != nil {
		return snap, fmt.Errorf("reschedule appointment %s: %w", s.appointment.ID, err)
	}
	return snap, nil
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil
	return s.snapshotLocked()
}

// Close returns to Idle from any state, dropping every selection and any response still
// in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = Idle{}
	s.notice = nil
	s.result = nil
}
