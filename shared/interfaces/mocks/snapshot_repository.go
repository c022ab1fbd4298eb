package mocks

import (
	"context"
	"time"

	"dramaforge/shared/models"

	"github.com/stretchr/testify/mock"
)

// SnapshotRepository is a mock type for the SnapshotRepository type
type SnapshotRepository struct {
	mock.Mock
}

func (m *SnapshotRepository) Save(ctx context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *SnapshotRepository) Get(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	snapshot, _ := args.Get(0).(*models.SessionSnapshot)
	return snapshot, args.Error(1)
}

func (m *SnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}
