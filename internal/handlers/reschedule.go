package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"telehealth-portal/internal/audit"
	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/eligibility"
	"telehealth-portal/internal/listing"
	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/reschedule"
	"telehealth-portal/internal/utils"
)

// AppointmentGetter loads one appointment.
type AppointmentGetter interface {
	GetAppointment(ctx context.Context, id string) (models.Appointment, error)
}

// RescheduleHandler exposes reschedule sessions over HTTP.
type RescheduleHandler struct {
	Backend  AppointmentGetter
	Sessions *reschedule.Manager
	Clock    func() time.Time
}

func NewRescheduleHandler(b AppointmentGetter, sessions *reschedule.Manager, clock func() time.Time) *RescheduleHandler {
	if clock == nil {
		clock = time.Now
	}
	return &RescheduleHandler{Backend: b, Sessions: sessions, Clock: clock}
}

type openSessionRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
}

type selectDateRequest struct {
	Date string `json:"date" binding:"required" validate:"calendardate"`
}

type selectSlotRequest struct {
	StartTime string `json:"startTime" binding:"required" validate:"clocktime"`
}

// OpenSession starts a session for an appointment the viewer may reschedule and loads
// the candidate dates.
func (h *RescheduleHandler) OpenSession(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	var req openSessionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	appt, err := h.Backend.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		respondBackendError(c, err, "Failed to retrieve appointment")
		return
	}
	res := eligibility.Evaluate(appt, h.Clock(), viewer)
	if !res.CanReschedule {
		status := http.StatusConflict
		if res.RescheduleReason == eligibility.ReasonRescheduleNotOwner {
			status = http.StatusForbidden
		}
		utils.Error(c, status, res.RescheduleReason)
		return
	}

	session := h.Sessions.Create(appt, viewer)
	snap, err := session.Open(ctx)
	if err != nil {
		respondSessionError(c, err, snap)
		return
	}
	utils.Created(c, "Reschedule session opened", snap)
}

func (h *RescheduleHandler) session(c *gin.Context) (*reschedule.Session, bool) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return nil, false
	}
	s, err := h.Sessions.Get(c.Param("id"), viewer)
	switch {
	case errors.Is(err, reschedule.ErrSessionNotFound):
		utils.NotFound(c, "Reschedule session not found or expired")
		return nil, false
	case errors.Is(err, reschedule.ErrNotSessionOwner):
		utils.Forbidden(c, "This reschedule session belongs to another user")
		return nil, false
	case err != nil:
		utils.InternalServerError(c, err.Error())
		return nil, false
	}
	return s, true
}

// GetSession returns the session's current view.
func (h *RescheduleHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	utils.Success(c, "Reschedule session retrieved", s.Snapshot())
}

// SelectDate picks a candidate date and loads its slots.
func (h *RescheduleHandler) SelectDate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req selectDateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	snap, err := s.SelectDate(c.Request.Context(), req.Date)
	if err != nil {
		respondSessionError(c, err, snap)
		return
	}
	utils.Success(c, "Date selected", snap)
}

// SelectSlot picks one of the loaded slots.
func (h *RescheduleHandler) SelectSlot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req selectSlotRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	snap, err := s.SelectSlot(req.StartTime)
	if err != nil {
		respondSessionError(c, err, snap)
		return
	}
	utils.Success(c, "Slot selected", snap)
}

// Submit sends the picked date and slot. A rejected submit keeps the session open with
// the backend's message so it can be retried.
func (h *RescheduleHandler) Submit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	// The session may have been opened before the appointment entered the protected window.
	res := eligibility.Evaluate(s.Appointment(), h.Clock(), s.Viewer())
	if !res.CanReschedule {
		utils.ErrorWithData(c, http.StatusConflict, res.RescheduleReason, s.Snapshot())
		return
	}
	snap, err := s.Submit(c.Request.Context())
	if err != nil {
		respondSessionError(c, err, snap)
		return
	}
	h.Sessions.Remove(s.ID())
	utils.Success(c, "Appointment rescheduled successfully", snap)
}

// DismissNotice clears the session's notice.
func (h *RescheduleHandler) DismissNotice(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	utils.Success(c, "Notice dismissed", s.DismissNotice())
}

// CloseSession discards the session and everything picked in it.
func (h *RescheduleHandler) CloseSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.Sessions.Remove(s.ID())
	c.Status(http.StatusNoContent)
}

func respondSessionError(c *gin.Context, err error, snap reschedule.Snapshot) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, reschedule.ErrUnknownDate), errors.Is(err, reschedule.ErrUnknownSlot):
		utils.ErrorWithData(c, http.StatusBadRequest, err.Error(), snap)
	case errors.Is(err, reschedule.ErrAlreadyOpen),
		errors.Is(err, reschedule.ErrNotOpen),
		errors.Is(err, reschedule.ErrDatesNotReady),
		errors.Is(err, reschedule.ErrSlotsNotReady),
		errors.Is(err, reschedule.ErrNothingToSubmit),
		errors.Is(err, reschedule.ErrSubmitInFlight):
		utils.ErrorWithData(c, http.StatusConflict, err.Error(), snap)
	default:
		msg := reschedule.MsgRescheduleFailed
		if snap.Notice != nil {
			msg = snap.Notice.Message
		}
		utils.ErrorWithData(c, backendStatus(err), msg, snap)
	}
}

// AvailabilityInvalidator drops a doctor's cached weekly availability.
type AvailabilityInvalidator interface {
	Invalidate(ctx context.Context, doctorID string) error
}

// RescheduleHook is run after every reschedule submission: it records the attempt,
// counts it and, on success, updates and refreshes the viewer's list. A conflict from
// the backend means the dates offered were stale, so the doctor's cached availability
// is dropped when inv is set.
func RescheduleHook(lists *listing.Registry, rec audit.Recorder, inv AvailabilityInvalidator, m *metrics.PortalMetrics, logger zerolog.Logger) func(context.Context, reschedule.Outcome) {
	if rec == nil {
		rec = audit.Nop{}
	}
	return func(ctx context.Context, o reschedule.Outcome) {
		recordAction(ctx, rec, audit.Rescheduled(o), logger)
		if o.Err != nil {
			m.ObserveAction(string(models.ActionReschedule), string(models.OutcomeFailed))
			if inv != nil && backend.StatusCode(o.Err) == http.StatusConflict {
				if err := inv.Invalidate(context.WithoutCancel(ctx), o.Before.DoctorID); err != nil {
					logger.Warn().Err(err).Str("doctor_id", o.Before.DoctorID).Msg("availability cache invalidation failed")
				}
			}
			return
		}
		m.ObserveAction(string(models.ActionReschedule), string(models.OutcomeSucceeded))
		if lists == nil {
			return
		}
		ctrl, live := lists.Existing(o.Viewer)
		if !live {
			return
		}
		if o.After.ID != "" {
			ctrl.ApplyRescheduled(o.After)
		}
		if _, err := ctrl.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Str("appointment_id", o.Before.ID).Msg("list refresh after reschedule failed")
		}
	}
}
