package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DayOfWeek is the weekday enum used by the scheduling backend
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var weekdays = [...]DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayOfWeekFor converts a time.Weekday to the backend enum.
func DayOfWeekFor(d time.Weekday) DayOfWeek {
	return weekdays[d]
}

// AvailabilitySlot is a doctor's recurring weekly opening.
type AvailabilitySlot struct {
	ID        string    `json:"id,omitempty"`
	DayOfWeek DayOfWeek `json:"dayOfWeek"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Available bool      `json:"available"`
}

// UnmarshalJSON accepts both `available` and `isAvailable`, and any casing of the weekday.
func (s *AvailabilitySlot) UnmarshalJSON(data []byte) error {
	var w struct {
		ID             flexID `json:"id"`
		DayOfWeek      string `json:"dayOfWeek"`
		DayOfWeekSnake string `json:"day_of_week"`
		StartTime      string `json:"startTime"`
		StartTimeSnake string `json:"start_time"`
		EndTime        string `json:"endTime"`
		EndTimeSnake   string `json:"end_time"`
		Available      *bool  `json:"available"`
		IsAvailable    *bool  `json:"isAvailable"`
		IsAvailableSn  *bool  `json:"is_available"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	available := false
	for _, b := range []*bool{w.Available, w.IsAvailable, w.IsAvailableSn} {
		if b != nil {
			available = *b
			break
		}
	}
	*s = AvailabilitySlot{
		ID:        string(w.ID),
		DayOfWeek: DayOfWeek(strings.ToUpper(strings.TrimSpace(firstNonEmpty(w.DayOfWeek, w.DayOfWeekSnake)))),
		StartTime: firstNonEmpty(w.StartTime, w.StartTimeSnake),
		EndTime:   firstNonEmpty(w.EndTime, w.EndTimeSnake),
		Available: available,
	}
	return nil
}

// TimeSlot is a concrete, date-specific free window returned by the backend.
type TimeSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// UnmarshalJSON accepts camelCase and snake_case slot fields.
func (s *TimeSlot) UnmarshalJSON(data []byte) error {
	var w struct {
		StartTime      string `json:"startTime"`
		StartTimeSnake string `json:"start_time"`
		EndTime        string `json:"endTime"`
		EndTimeSnake   string `json:"end_time"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.StartTime = firstNonEmpty(w.StartTime, w.StartTimeSnake)
	s.EndTime = firstNonEmpty(w.EndTime, w.EndTimeSnake)
	return nil
}
