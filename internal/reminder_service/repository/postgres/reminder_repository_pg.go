package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrackhq/medtrack/internal/reminder_service/domain"
)

const reminderColumns = `id, user_id, medication_id, scheduled_at, next_attempt_at, message, status,
	email_enabled, email_sent, email_sent_at,
	sms_enabled, sms_sent, sms_sent_at,
	retry_count, last_retry_at, created_at, updated_at`

const reminderColumnsQualified = `r.id, r.user_id, r.medication_id, r.scheduled_at, r.next_attempt_at, r.message, r.status,
	r.email_enabled, r.email_sent, r.email_sent_at,
	r.sms_enabled, r.sms_sent, r.sms_sent_at,
	r.retry_count, r.last_retry_at, r.created_at, r.updated_at`

type PgReminderRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgReminderRepository(db *pgxpool.Pool, logger *slog.Logger) *PgReminderRepository {
	return &PgReminderRepository{db: db, logger: logger}
}

func (r *PgReminderRepository) Create(ctx context.Context, rem *domain.Reminder) error {
	query := `
		INSERT INTO reminders (` + reminderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		rem.ID, rem.UserID, rem.MedicationID, rem.ScheduledAt, rem.NextAttemptAt, rem.Message, rem.Status,
		rem.Email.Enabled, rem.Email.Sent, rem.Email.SentAt,
		rem.SMS.Enabled, rem.SMS.Sent, rem.SMS.SentAt,
		rem.RetryCount, rem.LastRetryAt, rem.CreatedAt, rem.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating reminder", "error", err, "reminder_id", rem.ID)
		return err
	}
	return nil
}

func (r *PgReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	rem, err := scanReminder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting reminder by ID", "error", err, "reminder_id", id)
		return nil, err
	}
	return rem, nil
}

func (r *PgReminderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = $1 ORDER BY scheduled_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing reminders by user", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()
	return scanReminderRows(rows)
}

// AcquireDueInWindow claims reminders whose next attempt falls in [from, to)
// and that still have an enabled, unsent channel and retries remaining. The
// select-for-update and the claiming update run as one atomic statement:
// claimed rows have next_attempt_at deferred to the window end, so a second
// dispatcher instance running the same query cannot pick them up, and a crash
// mid-batch resurfaces them on the next tick.
func (r *PgReminderRepository) AcquireDueInWindow(ctx context.Context, userID uuid.NullUUID, from, to time.Time, maxRetry, limit int) ([]*domain.Reminder, error) {
	query := `
		WITH due AS (
			SELECT id
			FROM reminders
			WHERE next_attempt_at >= $1 AND next_attempt_at < $2
			  AND (status = $3 OR (status = $4 AND retry_count < $5))
			  AND ((email_enabled AND NOT email_sent) OR (sms_enabled AND NOT sms_sent))
			  AND ($6::uuid IS NULL OR user_id = $6)
			ORDER BY scheduled_at ASC
			LIMIT $7
			FOR UPDATE SKIP LOCKED
		)
		UPDATE reminders r
		SET next_attempt_at = $2, updated_at = now()
		FROM due
		WHERE r.id = due.id
		RETURNING ` + reminderColumnsQualified + `
	`
	rows, err := r.db.Query(ctx, query, from, to, domain.ReminderPending, domain.ReminderFailed, maxRetry, userID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error acquiring due reminders", "error", err)
		return nil, err
	}
	defer rows.Close()

	rems, err := scanReminderRows(rows)
	if err != nil {
		return nil, err
	}
	if len(rems) == 0 {
		return nil, domain.ErrNoDueReminders
	}
	// UPDATE ... RETURNING does not preserve the CTE's ordering.
	sort.Slice(rems, func(i, j int) bool { return rems[i].ScheduledAt.Before(rems[j].ScheduledAt) })
	return rems, nil
}

// MarkAsSent flags one channel as delivered. The aggregate status is
// promoted to sent only when the other enabled channel is already sent.
func (r *PgReminderRepository) MarkAsSent(ctx context.Context, id uuid.UUID, channel domain.Channel, sentAt time.Time) error {
	var query string
	switch channel {
	case domain.ChannelEmail:
		query = `
			UPDATE reminders
			SET email_sent = TRUE, email_sent_at = $2,
			    status = CASE WHEN (NOT sms_enabled OR sms_sent) THEN $3::text ELSE status END,
			    updated_at = $2
			WHERE id = $1
		`
	case domain.ChannelSMS:
		query = `
			UPDATE reminders
			SET sms_sent = TRUE, sms_sent_at = $2,
			    status = CASE WHEN (NOT email_enabled OR email_sent) THEN $3::text ELSE status END,
			    updated_at = $2
			WHERE id = $1
		`
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownChannel, channel)
	}

	tag, err := r.db.Exec(ctx, query, id, sentAt.UTC(), domain.ReminderSent)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking reminder channel sent", "error", err, "reminder_id", id, "channel", channel)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkAsFailed records one delivery failure and defers the next attempt to
// nextAttemptAt, so the reminder becomes due again in a later window instead
// of stranding behind every future window start.
func (r *PgReminderRepository) MarkAsFailed(ctx context.Context, id uuid.UUID, failedAt, nextAttemptAt time.Time) error {
	query := `
		UPDATE reminders
		SET status = $2, retry_count = retry_count + 1, last_retry_at = $3, next_attempt_at = $4, updated_at = $3
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.ReminderFailed, failedAt.UTC(), nextAttemptAt.UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking reminder failed", "error", err, "reminder_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanReminder(row pgx.Row) (*domain.Reminder, error) {
	rem := &domain.Reminder{}
	err := row.Scan(
		&rem.ID, &rem.UserID, &rem.MedicationID, &rem.ScheduledAt, &rem.NextAttemptAt, &rem.Message, &rem.Status,
		&rem.Email.Enabled, &rem.Email.Sent, &rem.Email.SentAt,
		&rem.SMS.Enabled, &rem.SMS.Sent, &rem.SMS.SentAt,
		&rem.RetryCount, &rem.LastRetryAt, &rem.CreatedAt, &rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rem, nil
}

func scanReminderRows(rows pgx.Rows) ([]*domain.Reminder, error) {
	var rems []*domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		rems = append(rems, rem)
	}
	return rems, rows.Err()
}
