package reschedule

import (
	"time"

	"telehealth-portal/internal/models"
)

// HorizonDays is the size of the rolling candidate window: today plus 13 days.
const HorizonDays = 14

// CandidateDate is a calendar date on which the doctor has a recurring opening.
type CandidateDate struct {
	Date      string           `json:"date"`
	Label     string           `json:"label"`
	DayOfWeek models.DayOfWeek `json:"dayOfWeek"`
}

// ProjectDates lists the dates in [today, today+days) whose weekday has an available slot.
// today is read as a calendar date in its own location.
func ProjectDates(slots []models.AvailabilitySlot, today time.Time, days int) []CandidateDate {
	open := make(map[models.DayOfWeek]bool, 7)
	for _, s := range slots {
		if s.Available {
			open[s.DayOfWeek] = true
		}
	}

	dates := make([]CandidateDate, 0, days)
	y, m, d := today.Date()
	for i := 0; i < days; i++ {
		day := time.Date(y, m, d+i, 12, 0, 0, 0, today.Location())
		dow := models.DayOfWeekFor(day.Weekday())
		if !open[dow] {
			continue
		}
		dates = append(dates, CandidateDate{
			Date:      day.Format(time.DateOnly),
			Label:     day.Format("Mon, Jan 2"),
			DayOfWeek: dow,
		})
	}
	return dates
}

func findDate(dates []CandidateDate, date string) (CandidateDate, bool) {
	for _, d := range dates {
		if d.Date == date {
			return d, true
		}
	}
	return CandidateDate{}, false
}

func findSlot(slots []models.TimeSlot, start string) (models.TimeSlot, bool) {
	for _, s := range slots {
		if s.StartTime == start {
			return s, true
		}
	}
	return models.TimeSlot{}, false
}
