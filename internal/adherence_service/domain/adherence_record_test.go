package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(scheduledAt time.Time) *AdherenceRecord {
	return NewAdherenceRecord(uuid.New(), uuid.New(), uuid.New(), scheduledAt, "America/New_York")
}

func TestAdherenceRecord_Transitions(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	t.Run("PendingToTaken", func(t *testing.T) {
		rec := newTestRecord(now.Add(-time.Hour))
		require.NoError(t, rec.ConfirmTaken(now))
		assert.Equal(t, StatusTaken, rec.Status)
		require.True(t, rec.TakenAt.Valid)
		assert.Equal(t, now, rec.TakenAt.Time)
	})

	t.Run("MissedToTaken", func(t *testing.T) {
		rec := newTestRecord(now.Add(-time.Hour))
		require.NoError(t, rec.MarkMissed(now))
		require.NoError(t, rec.ConfirmTaken(now))
		assert.Equal(t, StatusTaken, rec.Status)
	})

	t.Run("TerminalStatesAreFinal", func(t *testing.T) {
		taken := newTestRecord(now)
		require.NoError(t, taken.ConfirmTaken(now))
		assert.True(t, errors.Is(taken.ConfirmTaken(now), ErrInvalidStateTransition))
		assert.True(t, errors.Is(taken.Skip(now), ErrInvalidStateTransition))
		assert.True(t, errors.Is(taken.MarkMissed(now), ErrInvalidStateTransition))

		skipped := newTestRecord(now)
		require.NoError(t, skipped.Skip(now))
		assert.True(t, errors.Is(skipped.ConfirmTaken(now), ErrInvalidStateTransition))
		assert.True(t, errors.Is(skipped.Skip(now), ErrInvalidStateTransition))
	})

	t.Run("MissedOnlyFromPending", func(t *testing.T) {
		rec := newTestRecord(now)
		require.NoError(t, rec.Skip(now))
		assert.True(t, errors.Is(rec.MarkMissed(now), ErrInvalidStateTransition))
	})
}

func TestAdherenceRecord_IsOverdue(t *testing.T) {
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

	t.Run("PendingPastSchedule", func(t *testing.T) {
		rec := newTestRecord(now.Add(-time.Minute))
		assert.True(t, rec.IsOverdue(now))
	})

	t.Run("PendingBeforeSchedule", func(t *testing.T) {
		rec := newTestRecord(now.Add(time.Minute))
		assert.False(t, rec.IsOverdue(now))
	})

	t.Run("ResolvedDoseIsNeverOverdue", func(t *testing.T) {
		rec := newTestRecord(now.Add(-time.Hour))
		require.NoError(t, rec.ConfirmTaken(now))
		assert.False(t, rec.IsOverdue(now))
	})
}
