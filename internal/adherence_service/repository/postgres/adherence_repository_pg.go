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

const adherenceColumns = `id, user_id, medication_id, scheduled_at, timezone, status, taken_at, notes, retry_count, created_at, updated_at`

type PgAdherenceRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgAdherenceRepository(db *pgxpool.Pool, logger *slog.Logger) *PgAdherenceRepository {
	return &PgAdherenceRepository{db: db, logger: logger}
}

func (r *PgAdherenceRepository) Create(ctx context.Context, rec *domain.AdherenceRecord) error {
	query := `
		INSERT INTO adherence_records (` + adherenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.UserID, rec.MedicationID, rec.ScheduledAt, rec.Timezone, rec.Status,
		rec.TakenAt, rec.Notes, rec.RetryCount, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating adherence record", "error", err, "record_id", rec.ID)
		return err
	}
	return nil
}

// BulkCreate inserts records in one batch. The unique index on
// (medication_id, scheduled_at) plus ON CONFLICT DO NOTHING makes
// re-running expansion a no-op for already-generated occurrences.
func (r *PgAdherenceRepository) BulkCreate(ctx context.Context, recs []*domain.AdherenceRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO adherence_records (` + adherenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (medication_id, scheduled_at) DO NOTHING
	`
	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(query,
			rec.ID, rec.UserID, rec.MedicationID, rec.ScheduledAt, rec.Timezone, rec.Status,
			rec.TakenAt, rec.Notes, rec.RetryCount, rec.CreatedAt, rec.UpdatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	inserted := 0
	for range recs {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			r.logger.ErrorContext(ctx, "Error bulk-creating adherence records", "error", err)
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func (r *PgAdherenceRepository) Update(ctx context.Context, rec *domain.AdherenceRecord) error {
	query := `
		UPDATE adherence_records
		SET status = $1, taken_at = $2, notes = $3, retry_count = $4, updated_at = $5
		WHERE id = $6
	`
	rec.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx, query,
		rec.Status, rec.TakenAt, rec.Notes, rec.RetryCount, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating adherence record", "error", err, "record_id", rec.ID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgAdherenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AdherenceRecord, error) {
	query := `SELECT ` + adherenceColumns + ` FROM adherence_records WHERE id = $1`
	rec := &domain.AdherenceRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.UserID, &rec.MedicationID, &rec.ScheduledAt, &rec.Timezone, &rec.Status,
		&rec.TakenAt, &rec.Notes, &rec.RetryCount, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting adherence record by ID", "error", err, "record_id", id)
		return nil, err
	}
	return rec, nil
}

func (r *PgAdherenceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.AdherenceRecord, error) {
	query := `SELECT ` + adherenceColumns + ` FROM adherence_records WHERE user_id = $1 ORDER BY scheduled_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing adherence records by user", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()
	return scanAdherenceRows(rows)
}

func (r *PgAdherenceRepository) ListPendingInWindow(ctx context.Context, userID uuid.NullUUID, from, to time.Time) ([]*domain.AdherenceRecord, error) {
	query := `
		SELECT ` + adherenceColumns + `
		FROM adherence_records
		WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		  AND ($4::uuid IS NULL OR user_id = $4)
		ORDER BY scheduled_at ASC
	`
	rows, err := r.db.Query(ctx, query, domain.StatusPending, from, to, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing pending records in window", "error", err)
		return nil, err
	}
	defer rows.Close()
	return scanAdherenceRows(rows)
}

func (r *PgAdherenceRepository) ListOverdue(ctx context.Context, userID uuid.NullUUID, now time.Time) ([]*domain.AdherenceRecord, error) {
	query := `
		SELECT ` + adherenceColumns + `
		FROM adherence_records
		WHERE status = $1 AND scheduled_at < $2
		  AND ($3::uuid IS NULL OR user_id = $3)
		ORDER BY scheduled_at ASC
	`
	rows, err := r.db.Query(ctx, query, domain.StatusPending, now, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing overdue records", "error", err)
		return nil, err
	}
	defer rows.Close()
	return scanAdherenceRows(rows)
}

func scanAdherenceRows(rows pgx.Rows) ([]*domain.AdherenceRecord, error) {
	var recs []*domain.AdherenceRecord
	for rows.Next() {
		rec := &domain.AdherenceRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.MedicationID, &rec.ScheduledAt, &rec.Timezone, &rec.Status,
			&rec.TakenAt, &rec.Notes, &rec.RetryCount, &rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
