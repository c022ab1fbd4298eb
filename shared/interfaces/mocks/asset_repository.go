package mocks

import (
	"context"

	"dramaforge/shared/models"

	"github.com/stretchr/testify/mock"
)

// AssetRepository is a mock type for the AssetRepository type
type AssetRepository struct {
	mock.Mock
}

func (m *AssetRepository) Get(ctx context.Context, assetID string) (*models.Asset, error) {
	args := m.Called(ctx, assetID)
	asset, _ := args.Get(0).(*models.Asset)
	return asset, args.Error(1)
}

func (m *AssetRepository) Search(ctx context.Context, query models.AssetQuery) ([]models.Asset, error) {
	args := m.Called(ctx, query)
	assets, _ := args.Get(0).([]models.Asset)
	return assets, args.Error(1)
}

func (m *AssetRepository) RegisterIfAbsent(ctx context.Context, asset models.Asset) (*models.Asset, error) {
	args := m.Called(ctx, asset)
	stored, _ := args.Get(0).(*models.Asset)
	return stored, args.Error(1)
}

func (m *AssetRepository) IncrementUsage(ctx context.Context, assetID string) error {
	args := m.Called(ctx, assetID)
	return args.Error(0)
}

func (m *AssetRepository) CommitUsage(ctx context.Context, newAssets []models.Asset, usedIDs []string) error {
	args := m.Called(ctx, newAssets, usedIDs)
	return args.Error(0)
}
