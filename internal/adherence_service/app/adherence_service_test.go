package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

func setupAdherenceServiceTest(t *testing.T, now time.Time) (*AdherenceService, *MockAdherenceRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRepo := new(MockAdherenceRepository)
	svc := NewAdherenceService(mockRepo, logger)
	svc.nowFunc = func() time.Time { return now }
	return svc, mockRepo
}

func pendingRecord(userID uuid.UUID) *domain.AdherenceRecord {
	return domain.NewAdherenceRecord(uuid.New(), userID, uuid.New(), time.Now().Add(time.Hour), "America/New_York")
}

func TestAdherenceService_ConfirmDose(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	t.Run("PendingDoseConfirmed", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()
		mockRepo.On("Update", ctx, rec).Return(nil).Once()

		got, err := svc.ConfirmDose(ctx, rec.ID, userID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusTaken, got.Status)
		require.True(t, got.TakenAt.Valid)
		assert.Equal(t, now, got.TakenAt.Time)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissedDoseConfirmedLate", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		rec.Status = domain.StatusMissed
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()
		mockRepo.On("Update", ctx, rec).Return(nil).Once()

		got, err := svc.ConfirmDose(ctx, rec.ID, userID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusTaken, got.Status)
	})

	t.Run("SkippedDoseCannotBeConfirmed", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		rec.Status = domain.StatusSkipped
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()

		_, err := svc.ConfirmDose(ctx, rec.ID, userID)

		assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition))
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("AlreadyTakenCannotBeReconfirmed", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		rec.Status = domain.StatusTaken
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()

		_, err := svc.ConfirmDose(ctx, rec.ID, userID)

		assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition))
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		id := uuid.New()
		mockRepo.On("GetByID", ctx, id).Return(nil, domain.ErrNotFound).Once()

		_, err := svc.ConfirmDose(ctx, id, userID)

		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("WrongOwner", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()

		_, err := svc.ConfirmDose(ctx, rec.ID, uuid.New())

		assert.True(t, errors.Is(err, domain.ErrUnauthorized))
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestAdherenceService_SkipDose(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	t.Run("PendingDoseSkipped", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()
		mockRepo.On("Update", ctx, rec).Return(nil).Once()

		got, err := svc.SkipDose(ctx, rec.ID, userID)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusSkipped, got.Status)
		assert.False(t, got.TakenAt.Valid)
	})

	t.Run("SkippedDoseCannotBeSkippedAgain", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(userID)
		rec.Status = domain.StatusSkipped
		mockRepo.On("GetByID", ctx, rec.ID).Return(rec, nil).Once()

		_, err := svc.SkipDose(ctx, rec.ID, userID)

		assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition))
	})
}

func TestAdherenceService_SweepMissed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	t.Run("OverdueRecordsBecomeMissed", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		recA := pendingRecord(uuid.New())
		recB := pendingRecord(uuid.New())
		mockRepo.On("ListOverdue", ctx, uuid.NullUUID{}, now.Add(-24*time.Hour)).
			Return([]*domain.AdherenceRecord{recA, recB}, nil).Once()
		mockRepo.On("Update", ctx, mock.AnythingOfType("*domain.AdherenceRecord")).Return(nil).Twice()

		swept, err := svc.SweepMissed(ctx, 24*time.Hour)

		require.NoError(t, err)
		assert.Equal(t, 2, swept)
		assert.Equal(t, domain.StatusMissed, recA.Status)
		assert.Equal(t, domain.StatusMissed, recB.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("PersistFailureLeavesRecordForNextPass", func(t *testing.T) {
		svc, mockRepo := setupAdherenceServiceTest(t, now)
		rec := pendingRecord(uuid.New())
		mockRepo.On("ListOverdue", ctx, uuid.NullUUID{}, mock.AnythingOfType("time.Time")).
			Return([]*domain.AdherenceRecord{rec}, nil).Once()
		mockRepo.On("Update", ctx, rec).Return(errors.New("db down")).Once()

		swept, err := svc.SweepMissed(ctx, time.Hour)

		require.NoError(t, err)
		assert.Equal(t, 0, swept)
	})
}

func TestAdherenceService_Stats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	svc, mockRepo := setupAdherenceServiceTest(t, now)
	taken := pendingRecord(userID)
	taken.Status = domain.StatusTaken
	missed := pendingRecord(userID)
	missed.Status = domain.StatusMissed
	mockRepo.On("ListByUser", ctx, userID).Return([]*domain.AdherenceRecord{taken, missed}, nil).Once()

	stats, err := svc.Stats(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.InDelta(t, 50.0, stats.AdherenceRate, 0.001)
}
