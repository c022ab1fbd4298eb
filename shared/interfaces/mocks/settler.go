package mocks

import (
	"context"

	"dramaforge/shared/models"

	"github.com/stretchr/testify/mock"
)

// Settler is a mock type for the Settler type
type Settler struct {
	mock.Mock
}

func (m *Settler) Settle(ctx context.Context, req models.SettlementRequest) (*models.Receipt, error) {
	args := m.Called(ctx, req)
	receipt, _ := args.Get(0).(*models.Receipt)
	return receipt, args.Error(1)
}
