package domain

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MedicationSchedule is the immutable input to recurrence expansion.
// TimesOfDay entries are normalized 24-hour "HH:MM" strings in schedule
// order. An empty DaysOfWeek means the medication is taken daily.
type MedicationSchedule struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	MedicationID uuid.UUID      `json:"medication_id"`
	Timezone     string         `json:"timezone"` // resolved IANA zone, decided upstream at creation
	StartDate    time.Time      `json:"start_date"`
	EndDate      sql.NullTime   `json:"end_date,omitempty"`
	TimesOfDay   []string       `json:"times_of_day"`
	DaysOfWeek   []time.Weekday `json:"days_of_week,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    sql.NullTime   `json:"deleted_at,omitempty"`
}

// RunsOn reports whether the schedule applies on the given weekday.
func (s *MedicationSchedule) RunsOn(day time.Weekday) bool {
	if len(s.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range s.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// ScheduleSource reads the medication schedule fields needed for expansion.
// Schedule ownership (creation, deletion) lives outside this core.
type ScheduleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*MedicationSchedule, error)
	// ListActive returns schedules that are not deleted and whose date range
	// has not entirely passed, for top-up expansion.
	ListActive(ctx context.Context) ([]*MedicationSchedule, error)
}
