package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"go.uber.org/zap"
)

// AssetRegistry - общий каталог актеров, сцен и реквизита.
// Списки сортируются по usageCount по убыванию, затем по имени.
type AssetRegistry struct {
	repo   interfaces.AssetRepository
	logger *zap.Logger
}

// NewAssetRegistry создает реестр поверх хранилища.
func NewAssetRegistry(repo interfaces.AssetRepository, logger *zap.Logger) *AssetRegistry {
	return &AssetRegistry{
		repo:   repo,
		logger: logger.Named("AssetRegistry"),
	}
}

// Find возвращает ассет или models.ErrAssetNotFound.
func (r *AssetRegistry) Find(ctx context.Context, assetID string) (*models.Asset, error) {
	if strings.TrimSpace(assetID) == "" {
		return nil, fmt.Errorf("%w: empty asset id", models.ErrBadRequest)
	}
	return r.repo.Get(ctx, assetID)
}

// Search ищет ассеты по подстроке в имени или описании без учета регистра,
// при необходимости только одного типа.
func (r *AssetRegistry) Search(ctx context.Context, text string, assetType models.AssetType) ([]models.Asset, error) {
	assets, err := r.repo.Search(ctx, models.AssetQuery{Text: text, Type: assetType})
	if err != nil {
		r.logger.Error("Failed to search assets", zap.String("text", text), zap.String("type", string(assetType)), zap.Error(err))
		return nil, err
	}
	sort.SliceStable(assets, func(i, j int) bool { return models.LessByUsage(assets[i], assets[j]) })
	return assets, nil
}

// List возвращает ассеты одного типа, а при пустом assetType - все.
func (r *AssetRegistry) List(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	return r.Search(ctx, "", assetType)
}

// RegisterIfAbsent сохраняет новый ассет. Для существующего id ничего не
// меняет и возвращает сохраненную запись.
func (r *AssetRegistry) RegisterIfAbsent(ctx context.Context, asset models.Asset) (*models.Asset, error) {
	if err := validateAsset(asset); err != nil {
		return nil, err
	}
	stored, err := r.repo.RegisterIfAbsent(ctx, asset)
	if err != nil {
		r.logger.Error("Failed to register asset", zap.String("assetID", asset.AssetID), zap.Error(err))
		return nil, err
	}
	return stored, nil
}

// RecordUsage увеличивает usageCount зарегистрированного ассета на единицу.
func (r *AssetRegistry) RecordUsage(ctx context.Context, assetID string) error {
	return r.repo.IncrementUsage(ctx, assetID)
}

// CommitConfirmation применяет к ассетам подтверждение одного кадра:
// отсутствующие в каталоге ассеты регистрируются на creator, затем каждый
// различный ассет кадра получает ровно одно использование.
// Возвращает только что зарегистрированные ассеты.
//
// Если какой-то ассет не найден ни в реестре, ни в authored, ничего не пишется.
func (r *AssetRegistry) CommitConfirmation(ctx context.Context, frame models.FrameData, authored []models.Asset, creator string) ([]models.Asset, error) {
	usedIDs := frame.AssetIDs()
	byID := make(map[string]models.Asset, len(authored))
	for _, a := range authored {
		byID[a.AssetID] = a
	}

	var fresh []models.Asset
	for _, id := range usedIDs {
		_, err := r.repo.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrAssetNotFound) {
			return nil, fmt.Errorf("lookup asset %s: %w", id, err)
		}
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, id)
		}
		a.Creator = creator
		a.UsageCount = 0
		if err := validateAsset(a); err != nil {
			return nil, err
		}
		fresh = append(fresh, a)
	}

	if err := r.repo.CommitUsage(ctx, fresh, usedIDs); err != nil {
		r.logger.Error("Failed to commit asset usage",
			zap.Strings("assetIDs", usedIDs),
			zap.Int("newAssets", len(fresh)),
			zap.Error(err),
		)
		return nil, err
	}
	if len(fresh) > 0 {
		r.logger.Info("Registered authored assets", zap.Int("count", len(fresh)), zap.String("creator", creator))
	}
	return fresh, nil
}

func validateAsset(a models.Asset) error {
	if strings.TrimSpace(a.AssetID) == "" {
		return fmt.Errorf("%w: asset id is required", models.ErrValidation)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: asset %s has no name", models.ErrValidation, a.AssetID)
	}
	switch a.AssetType {
	case models.AssetTypeActor, models.AssetTypeScene, models.AssetTypeProp:
	default:
		return fmt.Errorf("%w: asset %s has unknown type %q", models.ErrValidation, a.AssetID, a.AssetType)
	}
	return nil
}
