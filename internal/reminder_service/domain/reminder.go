package domain

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ReminderStatus is the aggregate delivery status of a reminder.
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	// ReminderSent means every enabled channel has been sent. A partial
	// send is visible only through the channel-level flags.
	ReminderSent   ReminderStatus = "sent"
	ReminderFailed ReminderStatus = "failed"
)

// MaxDeliveryRetries is the cumulative delivery failure cap. A reminder
// that fails more often stays failed and requires manual intervention.
const MaxDeliveryRetries = 3

// Value implements the driver.Valuer interface for ReminderStatus.
func (s ReminderStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements the sql.Scanner interface for ReminderStatus.
func (s *ReminderStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan ReminderStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	*s = ReminderStatus(strVal)
	switch *s {
	case ReminderPending, ReminderSent, ReminderFailed:
		return nil
	default:
		return fmt.Errorf("unknown ReminderStatus value: %s", strVal)
	}
}

// ChannelState is the per-channel delivery sub-state of a reminder.
type ChannelState struct {
	Enabled bool         `json:"enabled"`
	Sent    bool         `json:"sent"`
	SentAt  sql.NullTime `json:"sent_at,omitempty"`
}

// Reminder is a notification intent for one upcoming dose. It is
// correlated with an adherence record by (medication id, scheduled
// instant) but not foreign-keyed to it.
type Reminder struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	MedicationID uuid.UUID `json:"medication_id"`
	ScheduledAt  time.Time `json:"scheduled_at"` // UTC instant
	// NextAttemptAt is the instant delivery becomes due. It starts equal to
	// ScheduledAt and is pushed forward on failure so retries land in a
	// later dispatch window.
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	Message       string         `json:"message"`
	Status        ReminderStatus `json:"status"`
	Email         ChannelState   `json:"email"`
	SMS           ChannelState   `json:"sms"`
	RetryCount    int            `json:"retry_count"`
	LastRetryAt   sql.NullTime   `json:"last_retry_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewReminder creates a pending reminder with the given channels enabled.
func NewReminder(id, userID, medicationID uuid.UUID, scheduledAt time.Time, message string, emailEnabled, smsEnabled bool) *Reminder {
	now := time.Now().UTC()
	return &Reminder{
		ID:            id,
		UserID:        userID,
		MedicationID:  medicationID,
		ScheduledAt:   scheduledAt.UTC(),
		NextAttemptAt: scheduledAt.UTC(),
		Message:       message,
		Status:        ReminderPending,
		Email:         ChannelState{Enabled: emailEnabled},
		SMS:           ChannelState{Enabled: smsEnabled},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *Reminder) channel(ch Channel) (*ChannelState, error) {
	switch ch {
	case ChannelEmail:
		return &r.Email, nil
	case ChannelSMS:
		return &r.SMS, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
}

// EnabledUnsentChannels returns the channels still awaiting delivery, in a
// fixed order. A disabled channel is trivially satisfied.
func (r *Reminder) EnabledUnsentChannels() []Channel {
	var chs []Channel
	if r.Email.Enabled && !r.Email.Sent {
		chs = append(chs, ChannelEmail)
	}
	if r.SMS.Enabled && !r.SMS.Sent {
		chs = append(chs, ChannelSMS)
	}
	return chs
}

// AllEnabledSent reports whether no enabled channel remains unsent.
func (r *Reminder) AllEnabledSent() bool {
	return len(r.EnabledUnsentChannels()) == 0
}

// MarkChannelSent records a successful send on one channel. The aggregate
// status is promoted to sent only once all enabled channels have sent.
func (r *Reminder) MarkChannelSent(ch Channel, now time.Time) error {
	state, err := r.channel(ch)
	if err != nil {
		return err
	}
	if !state.Enabled {
		return fmt.Errorf("%w: %q", ErrChannelDisabled, ch)
	}
	state.Sent = true
	state.SentAt = sql.NullTime{Time: now.UTC(), Valid: true}
	if r.AllEnabledSent() {
		r.Status = ReminderSent
	}
	r.UpdatedAt = now.UTC()
	return nil
}

// MarkFailed records one delivery failure and defers the next attempt so a
// later dispatch window picks the reminder up again.
func (r *Reminder) MarkFailed(now, nextAttempt time.Time) {
	r.RetryCount++
	r.LastRetryAt = sql.NullTime{Time: now.UTC(), Valid: true}
	r.NextAttemptAt = nextAttempt.UTC()
	r.Status = ReminderFailed
	r.UpdatedAt = now.UTC()
}

// CanRetry reports whether a failed reminder still has retries left.
func (r *Reminder) CanRetry() bool {
	return r.Status == ReminderFailed && r.RetryCount < MaxDeliveryRetries
}
