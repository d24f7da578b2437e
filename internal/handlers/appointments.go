package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"telehealth-portal/internal/audit"
	"telehealth-portal/internal/eligibility"
	"telehealth-portal/internal/listing"
	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/middleware"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/utils"
)

// AppointmentBackend is the part of the scheduling backend the appointment endpoints use.
type AppointmentBackend interface {
	GetAppointment(ctx context.Context, id string) (models.Appointment, error)
	CancelAppointment(ctx context.Context, id string) (models.Appointment, error)
}

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Backend AppointmentBackend
	Lists   *listing.Registry
	Audit   audit.Recorder
	Metrics *metrics.PortalMetrics
	Clock   func() time.Time
	Logger  zerolog.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(b AppointmentBackend, lists *listing.Registry, rec audit.Recorder, m *metrics.PortalMetrics, clock func() time.Time, logger zerolog.Logger) *AppointmentHandler {
	if rec == nil {
		rec = audit.Nop{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &AppointmentHandler{Backend: b, Lists: lists, Audit: rec, Metrics: m, Clock: clock, Logger: logger}
}

// AppointmentDetail is one appointment with its affordances.
type AppointmentDetail struct {
	Appointment models.Appointment `json:"appointment"`
	Eligibility eligibility.Result `json:"eligibility"`
}

// CancelResult is the cancelled record plus the refreshed list.
type CancelResult struct {
	Appointment models.Appointment `json:"appointment"`
	List        *listing.View      `json:"list,omitempty"`
}

// JoinInfo is what the client needs to enter the consultation.
type JoinInfo struct {
	AppointmentID string    `json:"appointmentId"`
	RoomID        string    `json:"roomId"`
	StartsAt      time.Time `json:"startsAt"`
}

func viewerOrAbort(c *gin.Context) (models.Viewer, bool) {
	viewer, ok := middleware.GetViewerFromContext(c)
	if !ok || viewer.ID == "" {
		utils.Unauthorized(c, "User ID not found in token")
		return models.Viewer{}, false
	}
	return viewer, true
}

// parseListUpdate reads the list query parameters that are present.
func parseListUpdate(c *gin.Context) (listing.Update, string) {
	var u listing.Update
	if raw, ok := c.GetQuery("status"); ok {
		st := models.StatusAll
		if strings.TrimSpace(raw) != "" {
			parsed, known := models.ParseStatus(raw)
			if !known {
				return u, "Invalid status filter: " + raw
			}
			st = parsed
		}
		u.Status = &st
	}
	if raw, ok := c.GetQuery("dateFilter"); ok {
		f, known := listing.ParseDateFilter(raw)
		if !known {
			return u, "Invalid date filter: " + raw
		}
		u.DateFilter = &f
	}
	if raw, ok := c.GetQuery("search"); ok {
		s := strings.TrimSpace(raw)
		u.Search = &s
	}
	if raw, ok := c.GetQuery("sort"); ok {
		s, known := listing.ParseSort(raw)
		if !known {
			return u, "Invalid sort: " + raw
		}
		u.Sort = &s
	}
	if raw, ok := c.GetQuery("size"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return u, "Invalid page size: " + raw
		}
		u.PageSize = &n
	}
	if raw, ok := c.GetQuery("page"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > listing.MaxPage {
			return u, "Invalid page: " + raw
		}
		u.Page = &n
	}
	return u, ""
}

// ListAppointments applies the supplied filters to the viewer's list and loads the page.
// Changing any filter brings the list back to its first page.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	update, problem := parseListUpdate(c)
	if problem != "" {
		utils.BadRequest(c, problem)
		return
	}

	ctrl := h.Lists.For(viewer)
	if err := ctrl.Apply(update); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	view, err := ctrl.Load(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		utils.ErrorWithData(c, backendStatus(err), view.Notice, view)
		return
	}
	utils.Success(c, "Appointments retrieved successfully", view)
}

// GetFilters returns the filter values both list modes accept.
func (h *AppointmentHandler) GetFilters(c *gin.Context) {
	utils.Success(c, "Filters retrieved successfully", gin.H{
		"mode":        h.Lists.Mode(),
		"statuses":    listing.StatusOptions(),
		"dateFilters": listing.DateFilterOptions(),
		"defaults":    listing.DefaultQuery(),
	})
}

// loadVisible fetches an appointment the viewer is a party of. Admins may view any.
func (h *AppointmentHandler) loadVisible(c *gin.Context, viewer models.Viewer) (models.Appointment, bool) {
	appt, err := h.Backend.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBackendError(c, err, "Failed to retrieve appointment")
		return models.Appointment{}, false
	}
	if viewer.Role != models.RoleAdmin && !viewer.Owns(appt) {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return models.Appointment{}, false
	}
	return appt, true
}

// GetAppointmentByID returns one appointment with the actions offered to the viewer.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	appt, ok := h.loadVisible(c, viewer)
	if !ok {
		return
	}
	utils.Success(c, "Appointment retrieved successfully", AppointmentDetail{
		Appointment: appt,
		Eligibility: eligibility.Evaluate(appt, h.Clock(), viewer),
	})
}

// CancelAppointment cancels when the evaluator allows it. The backend may still refuse.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	appt, ok := h.loadVisible(c, viewer)
	if !ok {
		return
	}
	res := eligibility.Evaluate(appt, h.Clock(), viewer)
	if !res.CanCancel {
		status := http.StatusConflict
		if res.CancelReason == eligibility.ReasonCancelNotOwner {
			status = http.StatusForbidden
		}
		utils.Error(c, status, res.CancelReason)
		return
	}

	ctx := c.Request.Context()
	updated, err := h.Backend.CancelAppointment(ctx, appt.ID)
	h.record(ctx, audit.Cancelled(viewer, appt, err))
	if err != nil {
		h.Metrics.ObserveAction(string(models.ActionCancel), string(models.OutcomeFailed))
		respondBackendError(c, err, "Failed to cancel the appointment. Please try again.")
		return
	}
	h.Metrics.ObserveAction(string(models.ActionCancel), string(models.OutcomeSucceeded))
	if updated.ID == "" {
		updated = appt
		updated.Status = models.StatusCancelled
	}

	result := CancelResult{Appointment: updated}
	if ctrl, live := h.Lists.Existing(viewer); live {
		ctrl.ApplyCancelled(appt.ID)
		view, err := ctrl.Refresh(ctx)
		if err != nil {
			h.Logger.Warn().Err(err).Str("appointment_id", appt.ID).Msg("list refresh after cancel failed")
		}
		result.List = &view
	}
	utils.Success(c, "Appointment cancelled successfully", result)
}

// JoinAppointment answers whether the consultation can be entered right now.
func (h *AppointmentHandler) JoinAppointment(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	appt, ok := h.loadVisible(c, viewer)
	if !ok {
		return
	}
	res := eligibility.Evaluate(appt, h.Clock(), viewer)
	if !res.Joinable {
		utils.Conflict(c, res.JoinReason)
		return
	}
	utils.Success(c, "Consultation is open", JoinInfo{
		AppointmentID: appt.ID,
		RoomID:        appt.ID,
		StartsAt:      *res.StartsAt,
	})
}

// GetAppointmentHistory lists the cancel and reschedule attempts made through the portal.
func (h *AppointmentHandler) GetAppointmentHistory(c *gin.Context) {
	viewer, ok := viewerOrAbort(c)
	if !ok {
		return
	}
	appt, ok := h.loadVisible(c, viewer)
	if !ok {
		return
	}
	history, err := h.Audit.History(c.Request.Context(), appt.ID)
	if err != nil {
		_ = c.Error(err)
		utils.InternalServerError(c, "Failed to load appointment history")
		return
	}
	utils.Success(c, "Appointment history retrieved successfully", history)
}

func (h *AppointmentHandler) record(ctx context.Context, action *models.AppointmentAction) {
	recordAction(ctx, h.Audit, action, h.Logger)
}

// recordAction never fails the caller; a lost audit row is logged.
func recordAction(ctx context.Context, rec audit.Recorder, action *models.AppointmentAction, logger zerolog.Logger) {
	if err := rec.Record(context.WithoutCancel(ctx), action); err != nil {
		logger.Error().Err(err).
			Str("appointment_id", action.AppointmentID).
			Str("action", string(action.Action)).
			Msg("audit record failed")
	}
}
