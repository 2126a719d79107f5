package domain

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdherenceStatus is the lifecycle status of a single expected dose.
type AdherenceStatus string

const (
	StatusPending AdherenceStatus = "pending"
	StatusTaken   AdherenceStatus = "taken"
	StatusMissed  AdherenceStatus = "missed"
	StatusSkipped AdherenceStatus = "skipped"
)

// Value implements the driver.Valuer interface for AdherenceStatus.
func (s AdherenceStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements the sql.Scanner interface for AdherenceStatus.
func (s *AdherenceStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan AdherenceStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*s = AdherenceStatus(strVal)
	switch *s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return nil
	default:
		return fmt.Errorf("unknown AdherenceStatus value: %s", strVal)
	}
}

// AdherenceRecord is the persisted ground-truth entity for one expected
// dose. Exactly one record exists per (medication id, scheduled instant).
type AdherenceRecord struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	MedicationID uuid.UUID       `json:"medication_id"`
	ScheduledAt  time.Time       `json:"scheduled_at"` // UTC instant
	Timezone     string          `json:"timezone"`     // user zone captured at generation time
	Status       AdherenceStatus `json:"status"`
	TakenAt      sql.NullTime    `json:"taken_at,omitempty"`
	Notes        sql.NullString  `json:"notes,omitempty"`
	RetryCount   int             `json:"retry_count"` // delivery retries, independent of dose status
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewAdherenceRecord creates a pending record for one occurrence.
func NewAdherenceRecord(id, userID, medicationID uuid.UUID, scheduledAt time.Time, timezone string) *AdherenceRecord {
	now := time.Now().UTC()
	return &AdherenceRecord{
		ID:           id,
		UserID:       userID,
		MedicationID: medicationID,
		ScheduledAt:  scheduledAt.UTC(),
		Timezone:     timezone,
		Status:       StatusPending,
		RetryCount:   0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ConfirmTaken transitions the record to taken. A missed dose may still be
// confirmed late; a skipped or already taken dose may not.
func (r *AdherenceRecord) ConfirmTaken(now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusMissed {
		return fmt.Errorf("%w: cannot confirm dose in status %q", ErrInvalidStateTransition, r.Status)
	}
	r.Status = StatusTaken
	r.TakenAt = sql.NullTime{Time: now.UTC(), Valid: true}
	r.UpdatedAt = now.UTC()
	return nil
}

// Skip transitions the record to skipped under the same guard as ConfirmTaken.
func (r *AdherenceRecord) Skip(now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusMissed {
		return fmt.Errorf("%w: cannot skip dose in status %q", ErrInvalidStateTransition, r.Status)
	}
	r.Status = StatusSkipped
	r.UpdatedAt = now.UTC()
	return nil
}

// MarkMissed transitions a pending record to missed.
func (r *AdherenceRecord) MarkMissed(now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: cannot mark dose missed in status %q", ErrInvalidStateTransition, r.Status)
	}
	r.Status = StatusMissed
	r.UpdatedAt = now.UTC()
	return nil
}

// IsOverdue reports whether the dose is pending past its scheduled instant.
// Overdue is derived, never stored.
func (r *AdherenceRecord) IsOverdue(now time.Time) bool {
	return r.Status == StatusPending && now.After(r.ScheduledAt)
}
