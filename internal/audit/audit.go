// Package audit records every cancel and reschedule submitted through the portal.
package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/models"
	"telehealth-portal/internal/reschedule"
)

// Recorder persists appointment actions.
type Recorder interface {
	Record(ctx context.Context, action *models.AppointmentAction) error
	History(ctx context.Context, appointmentID string) ([]models.AppointmentAction, error)
}

// Store is the gorm-backed Recorder.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, action *models.AppointmentAction) error {
	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		return fmt.Errorf("record %s of appointment %s: %w", action.Action, action.AppointmentID, err)
	}
	return nil
}

// History lists an appointment's actions, newest first.
func (s *Store) History(ctx context.Context, appointmentID string) ([]models.AppointmentAction, error) {
	var actions []models.AppointmentAction
	err := s.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		Find(&actions).Error
	if err != nil {
		return nil, fmt.Errorf("load history of appointment %s: %w", appointmentID, err)
	}
	return actions, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, *models.AppointmentAction) error { return nil }

func (Nop) History(context.Context, string) ([]models.AppointmentAction, error) {
	return []models.AppointmentAction{}, nil
}

// Cancelled builds the record of a cancel attempt.
func Cancelled(viewer models.Viewer, before models.Appointment, err error) *models.AppointmentAction {
	a := &models.AppointmentAction{
		AppointmentID: before.ID,
		ActorID:       viewer.ID,
		ActorRole:     viewer.Role,
		Action:        models.ActionCancel,
		PreviousDate:  before.AppointmentDate,
		PreviousStart: before.StartTime,
	}
	setOutcome(a, err)
	return a
}

// Rescheduled builds the record of a reschedule submission.
func Rescheduled(o reschedule.Outcome) *models.AppointmentAction {
	a := &models.AppointmentAction{
		AppointmentID: o.Before.ID,
		ActorID:       o.Viewer.ID,
		ActorRole:     o.Viewer.Role,
		Action:        models.ActionReschedule,
		PreviousDate:  o.Before.AppointmentDate,
		PreviousStart: o.Before.StartTime,
		NewDate:       o.Request.AppointmentDate,
		NewStart:      o.Request.StartTime,
		NewEnd:        o.Request.EndTime,
	}
	setOutcome(a, o.Err)
	return a
}

func setOutcome(a *models.AppointmentAction, err error) {
	if err == nil {
		a.Outcome = models.OutcomeSucceeded
		return
	}
	a.Outcome = models.OutcomeFailed
	if msg, ok := backend.ServerMessage(err); ok {
		a.Message = msg
	} else {
		a.Message = err.Error()
	}
}
