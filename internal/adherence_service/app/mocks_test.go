package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/medtrackhq/medtrack/internal/adherence_service/domain"
)

// --- Mocks ---

type MockScheduleSource struct {
	mock.Mock
}

func (m *MockScheduleSource) GetByID(ctx context.Context, id uuid.UUID) (*domain.MedicationSchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MedicationSchedule), args.Error(1)
}

func (m *MockScheduleSource) ListActive(ctx context.Context) ([]*domain.MedicationSchedule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MedicationSchedule), args.Error(1)
}

type MockAdherenceRepository struct {
	mock.Mock
}

func (m *MockAdherenceRepository) Create(ctx context.Context, rec *domain.AdherenceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAdherenceRepository) BulkCreate(ctx context.Context, recs []*domain.AdherenceRecord) (int, error) {
	args := m.Called(ctx, recs)
	return args.Int(0), args.Error(1)
}

func (m *MockAdherenceRepository) Update(ctx context.Context, rec *domain.AdherenceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAdherenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AdherenceRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdherenceRecord), args.Error(1)
}

func (m *MockAdherenceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.AdherenceRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AdherenceRecord), args.Error(1)
}

func (m *MockAdherenceRepository) ListPendingInWindow(ctx context.Context, userID uuid.NullUUID, from, to time.Time) ([]*domain.AdherenceRecord, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AdherenceRecord), args.Error(1)
}

func (m *MockAdherenceRepository) ListOverdue(ctx context.Context, userID uuid.NullUUID, now time.Time) ([]*domain.AdherenceRecord, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AdherenceRecord), args.Error(1)
}
