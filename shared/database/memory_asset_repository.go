package database

import (
	"context"
	"fmt"
	"sync"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"go.uber.org/zap"
)

var _ interfaces.AssetRepository = (*memoryAssetRepository)(nil)

// memoryAssetRepository хранит каталог в памяти. Все записи идут под одним
// мьютексом, поэтому CommitUsage атомарен для параллельных читателей.
type memoryAssetRepository struct {
	mu     sync.RWMutex
	assets map[string]models.Asset
	logger *zap.Logger
}

// NewMemoryAssetRepository создает репозиторий в памяти с начальными ассетами.
func NewMemoryAssetRepository(seed []models.Asset, logger *zap.Logger) interfaces.AssetRepository {
	repo := &memoryAssetRepository{
		assets: make(map[string]models.Asset, len(seed)),
		logger: logger.Named("MemoryAssetRepo"),
	}
	for _, a := range seed {
		repo.assets[a.AssetID] = a
	}
	return repo
}

func (r *memoryAssetRepository) Get(_ context.Context, assetID string) (*models.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, assetID)
	}
	return &a, nil
}

func (r *memoryAssetRepository) Search(_ context.Context, query models.AssetQuery) ([]models.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Asset, 0, len(r.assets))
	for _, a := range r.assets {
		if query.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAssetRepository) RegisterIfAbsent(_ context.Context, asset models.Asset) (*models.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.assets[asset.AssetID]; ok {
		return &existing, nil
	}
	asset.UsageCount = 0
	r.assets[asset.AssetID] = asset
	r.logger.Debug("Asset registered", zap.String("assetID", asset.AssetID), zap.String("creator", asset.Creator))
	return &asset, nil
}

func (r *memoryAssetRepository) IncrementUsage(_ context.Context, assetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrAssetNotFound, assetID)
	}
	a.UsageCount++
	r.assets[assetID] = a
	return nil
}

func (r *memoryAssetRepository) CommitUsage(_ context.Context, newAssets []models.Asset, usedIDs []string) error {
	ids := dedupe(usedIDs)

	r.mu.Lock()
	defer r.mu.Unlock()

	incoming := make(map[string]models.Asset, len(newAssets))
	for _, a := range newAssets {
		incoming[a.AssetID] = a
	}
	// Сначала проверка: ничего не пишем, пока не найдены все id.
	for _, id := range ids {
		if _, ok := r.assets[id]; ok {
			continue
		}
		if _, ok := incoming[id]; ok {
			continue
		}
		return fmt.Errorf("%w: %s", models.ErrAssetNotFound, id)
	}

	for id, a := range incoming {
		if _, ok := r.assets[id]; ok {
			continue
		}
		a.UsageCount = 0
		r.assets[id] = a
	}
	for _, id := range ids {
		a := r.assets[id]
		a.UsageCount++
		r.assets[id] = a
	}
	return nil
}
