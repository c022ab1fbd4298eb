package interfaces

import (
	"context"

	"dramaforge/shared/models"
)

// AssetRepository - хранилище ассетов для реестра.
//
//go:generate mockery --name AssetRepository --output ./mocks --outpkg mocks --case=underscore
type AssetRepository interface {
	// Get возвращает models.ErrAssetNotFound для неизвестного id.
	Get(ctx context.Context, assetID string) (*models.Asset, error)

	// Search возвращает все подходящие ассеты без сортировки.
	Search(ctx context.Context, query models.AssetQuery) ([]models.Asset, error)

	// RegisterIfAbsent сохраняет ассет, если его id еще нет.
	// В обоих случаях возвращает сохраненную запись.
	RegisterIfAbsent(ctx context.Context, asset models.Asset) (*models.Asset, error)

	// IncrementUsage увеличивает usageCount одного ассета.
	IncrementUsage(ctx context.Context, assetID string) error

	// CommitUsage регистрирует отсутствующие newAssets и увеличивает каждый
	// usedIDs ровно на один, атомарно. Неизвестный id, которого нет в newAssets,
	// прерывает коммит с models.ErrAssetNotFound.
	CommitUsage(ctx context.Context, newAssets []models.Asset, usedIDs []string) error
}
