package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

const scheduleColumns = `id, user_id, medication_id, timezone, start_date, end_date, times_of_day, days_of_week, created_at, deleted_at`

// PgMedicationScheduleRepository reads medication schedules for expansion.
// Schedules are written by the medication management layer, not this core.
type PgMedicationScheduleRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgMedicationScheduleRepository(db *pgxpool.Pool, logger *slog.Logger) *PgMedicationScheduleRepository {
	return &PgMedicationScheduleRepository{db: db, logger: logger}
}

func (r *PgMedicationScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MedicationSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM medication_schedules WHERE id = $1`
	sched, err := scanSchedule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting medication schedule by ID", "error", err, "schedule_id", id)
		return nil, err
	}
	return sched, nil
}

func (r *PgMedicationScheduleRepository) ListActive(ctx context.Context) ([]*domain.MedicationSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM medication_schedules
		WHERE deleted_at IS NULL
		  AND (end_date IS NULL OR end_date >= now() - interval '2 days')
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing active medication schedules", "error", err)
		return nil, err
	}
	defer rows.Close()

	var scheds []*domain.MedicationSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		scheds = append(scheds, sched)
	}
	return scheds, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.MedicationSchedule, error) {
	sched := &domain.MedicationSchedule{}
	var days []int32
	err := row.Scan(
		&sched.ID, &sched.UserID, &sched.MedicationID, &sched.Timezone,
		&sched.StartDate, &sched.EndDate, &sched.TimesOfDay, &days,
		&sched.CreatedAt, &sched.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		sched.DaysOfWeek = append(sched.DaysOfWeek, time.Weekday(d))
	}
	return sched, nil
}
