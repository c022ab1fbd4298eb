package mocks

import (
	"context"

	"dramaforge/shared/models"

	"github.com/stretchr/testify/mock"
)

// DramaRepository is a mock type for the DramaRepository type
type DramaRepository struct {
	mock.Mock
}

func (m *DramaRepository) GetByID(ctx context.Context, dramaID string) (*models.Drama, error) {
	args := m.Called(ctx, dramaID)
	drama, _ := args.Get(0).(*models.Drama)
	return drama, args.Error(1)
}

func (m *DramaRepository) List(ctx context.Context) ([]models.Drama, error) {
	args := m.Called(ctx)
	dramas, _ := args.Get(0).([]models.Drama)
	return dramas, args.Error(1)
}
