package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrackhq/medtrack/internal/reminder_service/domain"
)

// PgEntitlementRepository reads subscription facts owned by the billing
// layer. A user with no subscription row is simply not entitled.
type PgEntitlementRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgEntitlementRepository(db *pgxpool.Pool, logger *slog.Logger) *PgEntitlementRepository {
	return &PgEntitlementRepository{db: db, logger: logger}
}

func (r *PgEntitlementRepository) IsActivePremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT user_id, active, expires_at FROM subscriptions WHERE user_id = $1`
	ent := &domain.SubscriptionEntitlement{}
	err := r.db.QueryRow(ctx, query, userID).Scan(&ent.UserID, &ent.Active, &ent.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.ErrorContext(ctx, "Error reading subscription entitlement", "error", err, "user_id", userID)
		return false, err
	}
	return ent.Entitled(time.Now().UTC()), nil
}
