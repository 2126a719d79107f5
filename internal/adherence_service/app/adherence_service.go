package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

// AdherenceService owns the lifecycle of generated dose instances.
type AdherenceService struct {
	records domain.AdherenceRepository
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewAdherenceService creates a new AdherenceService.
func NewAdherenceService(records domain.AdherenceRepository, logger *slog.Logger) *AdherenceService {
	return &AdherenceService{
		records: records,
		logger:  logger.With("component", "adherence"),
		nowFunc: time.Now,
	}
}

// ConfirmDose marks a dose as taken. A missed dose may be confirmed late.
func (s *AdherenceService) ConfirmDose(ctx context.Context, recordID, userID uuid.UUID) (*domain.AdherenceRecord, error) {
	return s.transition(ctx, recordID, userID, func(rec *domain.AdherenceRecord, now time.Time) error {
		return rec.ConfirmTaken(now)
	})
}

// SkipDose marks a dose as deliberately skipped.
func (s *AdherenceService) SkipDose(ctx context.Context, recordID, userID uuid.UUID) (*domain.AdherenceRecord, error) {
	return s.transition(ctx, recordID, userID, func(rec *domain.AdherenceRecord, now time.Time) error {
		return rec.Skip(now)
	})
}

func (s *AdherenceService) transition(ctx context.Context, recordID, userID uuid.UUID, apply func(*domain.AdherenceRecord, time.Time) error) (*domain.AdherenceRecord, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		s.logger.WarnContext(ctx, "Record ownership check failed", "record_id", recordID, "user_id", userID)
		return nil, domain.ErrUnauthorized
	}
	if err := apply(rec, s.nowFunc().UTC()); err != nil {
		return nil, err
	}
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist record %s: %w", recordID, err)
	}
	s.logger.InfoContext(ctx, "Dose status updated", "record_id", recordID, "status", rec.Status)
	return rec, nil
}

// Overdue returns the user's pending records whose scheduled instant has passed.
func (s *AdherenceService) Overdue(ctx context.Context, userID uuid.UUID) ([]*domain.AdherenceRecord, error) {
	return s.records.ListOverdue(ctx, uuid.NullUUID{UUID: userID, Valid: true}, s.nowFunc().UTC())
}

// SweepMissed marks pending records overdue for longer than grace as missed.
// It returns the number of records transitioned.
func (s *AdherenceService) SweepMissed(ctx context.Context, grace time.Duration) (int, error) {
	now := s.nowFunc().UTC()
	overdue, err := s.records.ListOverdue(ctx, uuid.NullUUID{}, now.Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("list overdue records: %w", err)
	}

	var swept int
	for _, rec := range overdue {
		if err := rec.MarkMissed(now); err != nil {
			continue
		}
		if err := s.records.Update(ctx, rec); err != nil {
			// Keep sweeping; the record stays overdue and is retried next pass.
			s.logger.ErrorContext(ctx, "Failed to persist missed dose", "record_id", rec.ID, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.InfoContext(ctx, "Marked overdue doses as missed", "count", swept)
	}
	return swept, nil
}

// Stats aggregates all of the user's records into adherence counters.
func (s *AdherenceService) Stats(ctx context.Context, userID uuid.UUID) (AdherenceStats, error) {
	recs, err := s.records.ListByUser(ctx, userID)
	if err != nil {
		return AdherenceStats{}, fmt.Errorf("list records for user %s: %w", userID, err)
	}
	return Aggregate(recs), nil
}
