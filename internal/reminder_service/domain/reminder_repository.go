package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReminderRepository defines the interface for managing Reminder data.
type ReminderRepository interface {
	Create(ctx context.Context, rem *Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Reminder, error)
	// AcquireDueInWindow claims reminders whose next attempt falls in
	// [from, to) and that still have an enabled, unsent channel and retries
	// remaining. Claiming defers each row's next attempt to the window end
	// in the same statement, so a concurrent run cannot select the same
	// rows. The predicate is the dispatcher's sole idempotency mechanism:
	// a fully-sent reminder is never re-selected.
	AcquireDueInWindow(ctx context.Context, userID uuid.NullUUID, from, to time.Time, maxRetry, limit int) ([]*Reminder, error)
	// MarkAsSent flags one channel as delivered and promotes the aggregate
	// status to sent when no enabled channel remains unsent.
	MarkAsSent(ctx context.Context, id uuid.UUID, channel Channel, sentAt time.Time) error
	// MarkAsFailed increments the delivery retry count, stamps the failure
	// time and defers the next attempt to nextAttemptAt.
	MarkAsFailed(ctx context.Context, id uuid.UUID, failedAt, nextAttemptAt time.Time) error
}
