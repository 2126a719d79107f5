package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdherenceRepository defines the interface for managing AdherenceRecord data.
type AdherenceRepository interface {
	Create(ctx context.Context, rec *AdherenceRecord) error
	// BulkCreate inserts records, silently skipping any that would duplicate
	// an existing (medication id, scheduled instant) pair. It returns the
	// number of rows actually inserted, so re-running expansion is a no-op
	// for already-generated occurrences.
	BulkCreate(ctx context.Context, recs []*AdherenceRecord) (int, error)
	Update(ctx context.Context, rec *AdherenceRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*AdherenceRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*AdherenceRecord, error)
	// ListPendingInWindow returns pending records scheduled in [from, to),
	// optionally filtered by user.
	ListPendingInWindow(ctx context.Context, userID uuid.NullUUID, from, to time.Time) ([]*AdherenceRecord, error)
	// ListOverdue returns pending records whose scheduled instant is before now.
	ListOverdue(ctx context.Context, userID uuid.NullUUID, now time.Time) ([]*AdherenceRecord, error)
}
