package interfaces

import (
	"context"

	"dramaforge/shared/models"
)

// Settler - сервис подтверждения в сети. Принимает зафиксированный узел и
// регистрации ассетов, возвращает квитанцию или ошибку.
//
//go:generate mockery --name Settler --output ./mocks --outpkg mocks --case=underscore
type Settler interface {
	Settle(ctx context.Context, req models.SettlementRequest) (*models.Receipt, error)
}
