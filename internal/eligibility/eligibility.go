// Package eligibility decides which actions the portal offers on an appointment.
//
// The result is advisory. The scheduling backend remains the authority and may still
// reject an action that is offered here.
package eligibility

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"telehealth-portal/internal/models"
)

const (
	// JoinLead is how early before the start a consultation can be joined.
	JoinLead = 10 * time.Minute
	// JoinGrace is how long after the start a consultation can still be joined.
	JoinGrace = 30 * time.Minute
	// ProtectedWindow is the period before the start in which cancel and reschedule are refused.
	ProtectedWindow = 24 * time.Hour
)

// Disabled-action reasons, surfaced to the viewer as tooltips.
const (
	ReasonJoinStatus      = "Only scheduled appointments can be joined"
	ReasonJoinTooEarly    = "You can join 10 minutes before the appointment starts"
	ReasonJoinClosed      = "The consultation window for this appointment has closed"
	ReasonJoinUnavailable = "Joining is unavailable for this appointment"

	ReasonCancelStatus      = "Only scheduled appointments can be cancelled"
	ReasonCancelNotOwner    = "You can only cancel your own appointments"
	ReasonCancelWindow      = "Appointments cannot be cancelled within 24 hours of the start time"
	ReasonCancelUnavailable = "Cancellation is unavailable for this appointment"

	ReasonRescheduleStatus      = "Only scheduled appointments can be rescheduled"
	ReasonRescheduleNotOwner    = "You can only reschedule your own appointments"
	ReasonRescheduleWindow      = "Appointments cannot be rescheduled within 24 hours of the start time"
	ReasonRescheduleUnavailable = "Rescheduling is unavailable for this appointment"
)

// ErrInvalidSchedule is returned when an appointment's date or start time cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid appointment date or time")

// Result is the set of affordances computed for one appointment and one viewer.
// A reason is empty exactly when the matching action is allowed.
type Result struct {
	Joinable         bool       `json:"joinable"`
	CanCancel        bool       `json:"canCancel"`
	CanReschedule    bool       `json:"canReschedule"`
	JoinReason       string     `json:"joinReason,omitempty"`
	CancelReason     string     `json:"cancelReason,omitempty"`
	RescheduleReason string     `json:"rescheduleReason,omitempty"`
	StartsAt         *time.Time `json:"startsAt,omitempty"`
}

// timeLayouts are the accepted time-of-day forms, HH:MM and HH:MM:SS.
var timeLayouts = []string{"15:04:05", "15:04"}

// StartInstant combines the appointment's local date and start time in loc.
func StartInstant(a models.Appointment, loc *time.Location) (time.Time, error) {
	return Combine(a.AppointmentDate, a.StartTime, loc)
}

// Combine parses a YYYY-MM-DD date and an HH:MM[:SS] time of day as one instant in loc.
func Combine(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidSchedule, date)
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range timeLayouts {
		tod, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidSchedule, clock)
}

// Evaluate computes join, cancel and reschedule eligibility. It never panics and fails closed
// on malformed records. The appointment's wall-clock fields are read in now's location.
func Evaluate(a models.Appointment, now time.Time, viewer models.Viewer) Result {
	var res Result

	start, err := StartInstant(a, now.Location())
	parsed := err == nil
	if parsed {
		res.StartsAt = &start
	}
	scheduled := a.Status == models.StatusScheduled

	switch {
	case !scheduled:
		res.JoinReason = ReasonJoinStatus
	case !parsed:
		res.JoinReason = ReasonJoinUnavailable
	case now.Before(start.Add(-JoinLead)):
		res.JoinReason = ReasonJoinTooEarly
	case now.After(start.Add(JoinGrace)):
		res.JoinReason = ReasonJoinClosed
	default:
		res.Joinable = true
	}

	// Cancel and reschedule share one predicate; only the wording differs.
	blocked := changeBlock(a, start, parsed, now, viewer)
	res.CanCancel = blocked == blockNone
	res.CanReschedule = res.CanCancel
	res.CancelReason = blocked.cancelReason()
	res.RescheduleReason = blocked.rescheduleReason()

	return res
}

type block int

const (
	blockNone block = iota
	blockStatus
	blockOwner
	blockWindow
	blockUnknown
)

// changeBlock returns the most fundamental reason preventing a change, checked in fixed order.
func changeBlock(a models.Appointment, start time.Time, parsed bool, now time.Time, viewer models.Viewer) block {
	switch {
	case a.Status != models.StatusScheduled:
		return blockStatus
	case !viewer.Owns(a):
		return blockOwner
	case !parsed:
		return blockUnknown
	case minutesUntil(start, now) < int64(ProtectedWindow/time.Minute):
		return blockWindow
	default:
		return blockNone
	}
}

// minutesUntil is the whole number of minutes from now to start, truncated toward zero.
func minutesUntil(start, now time.Time) int64 {
	return int64(start.Sub(now) / time.Minute)
}

func (b block) cancelReason() string {
	switch b {
	case blockNone:
		return ""
	case blockStatus:
		return ReasonCancelStatus
	case blockOwner:
		return ReasonCancelNotOwner
	case blockWindow:
		return ReasonCancelWindow
	default:
		return ReasonCancelUnavailable
	}
}

func (b block) rescheduleReason() string {
	switch b {
	case blockNone:
		return ""
	case blockStatus:
		return ReasonRescheduleStatus
	case blockOwner:
		return ReasonRescheduleNotOwner
	case blockWindow:
		return ReasonRescheduleWindow
	default:
		return ReasonRescheduleUnavailable
	}
}
