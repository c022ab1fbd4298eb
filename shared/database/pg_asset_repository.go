package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pgtx "dramaforge/pkg/database"
	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.AssetRepository = (*pgAssetRepository)(nil)

const (
	assetColumns = `asset_id, asset_type, name, description, thumbnail_url, creator, usage_count`

	getAssetQuery = `SELECT ` + assetColumns + ` FROM assets WHERE asset_id = $1`

	searchAssetsQuery = `
SELECT ` + assetColumns + `
FROM assets
WHERE ($1 = '' OR asset_type = $1)
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' ESCAPE '\' OR description ILIKE '%' || $2 || '%' ESCAPE '\')`

	insertAssetIfAbsentQuery = `
INSERT INTO assets (asset_id, asset_type, name, description, thumbnail_url, creator, usage_count)
VALUES ($1, $2, $3, $4, $5, $6, 0)
ON CONFLICT (asset_id) DO NOTHING`

	// Один атомарный инкремент на ассет, безопасно при параллельных сессиях.
	incrementUsageQuery = `UPDATE assets SET usage_count = usage_count + 1, updated_at = NOW() WHERE asset_id = ANY($1)`
)

type pgAssetRepository struct {
	db     interfaces.DBTX
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgAssetRepository создает репозиторий ассетов в Postgres.
func NewPgAssetRepository(pool *pgxpool.Pool, logger *zap.Logger) interfaces.AssetRepository {
	return &pgAssetRepository{
		db:     pool,
		pool:   pool,
		logger: logger.Named("PgAssetRepo"),
	}
}

func (r *pgAssetRepository) Get(ctx context.Context, assetID string) (*models.Asset, error) {
	var asset models.Asset
	if err := pgxscan.Get(ctx, r.db, &asset, getAssetQuery, assetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, assetID)
		}
		r.logger.Error("Failed to get asset", zap.String("assetID", assetID), zap.Error(err))
		return nil, fmt.Errorf("failed to get asset %s: %w", assetID, err)
	}
	return &asset, nil
}

func (r *pgAssetRepository) Search(ctx context.Context, query models.AssetQuery) ([]models.Asset, error) {
	var assets []models.Asset
	text := escapeLike(strings.TrimSpace(query.Text))
	if err := pgxscan.Select(ctx, r.db, &assets, searchAssetsQuery, string(query.Type), text); err != nil {
		r.logger.Error("Failed to search assets", zap.String("text", query.Text), zap.String("type", string(query.Type)), zap.Error(err))
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	return assets, nil
}

func (r *pgAssetRepository) RegisterIfAbsent(ctx context.Context, asset models.Asset) (*models.Asset, error) {
	if err := insertAsset(ctx, r.db, asset); err != nil {
		r.logger.Error("Failed to register asset", zap.String("assetID", asset.AssetID), zap.Error(err))
		return nil, err
	}
	return r.Get(ctx, asset.AssetID)
}

func (r *pgAssetRepository) IncrementUsage(ctx context.Context, assetID string) error {
	tag, err := r.db.Exec(ctx, incrementUsageQuery, []string{assetID})
	if err != nil {
		r.logger.Error("Failed to increment asset usage", zap.String("assetID", assetID), zap.Error(err))
		return fmt.Errorf("failed to increment usage for %s: %w", assetID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrAssetNotFound, assetID)
	}
	return nil
}

// CommitUsage выполняет регистрацию и инкременты в одной транзакции.
func (r *pgAssetRepository) CommitUsage(ctx context.Context, newAssets []models.Asset, usedIDs []string) error {
	ids := dedupe(usedIDs)
	logFields := []zap.Field{zap.Int("newAssets", len(newAssets)), zap.Strings("usedIDs", ids)}

	err := pgtx.ExecuteInTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		for _, asset := range newAssets {
			if err := insertAsset(ctx, tx, asset); err != nil {
				return err
			}
		}
		if len(ids) == 0 {
			return nil
		}
		tag, err := tx.Exec(ctx, incrementUsageQuery, ids)
		if err != nil {
			return fmt.Errorf("failed to increment usage: %w", err)
		}
		if int(tag.RowsAffected()) != len(ids) {
			return fmt.Errorf("%w: %d of %d referenced assets exist", models.ErrAssetNotFound, tag.RowsAffected(), len(ids))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAssetNotFound) {
			r.logger.Warn("Usage commit referenced unknown assets", append(logFields, zap.Error(err))...)
		} else {
			r.logger.Error("Failed to commit asset usage", append(logFields, zap.Error(err))...)
		}
		return err
	}
	r.logger.Debug("Asset usage committed", logFields...)
	return nil
}

func insertAsset(ctx context.Context, db interfaces.DBTX, asset models.Asset) error {
	_, err := db.Exec(ctx, insertAssetIfAbsentQuery,
		asset.AssetID,
		string(asset.AssetType),
		asset.Name,
		asset.Description,
		asset.ThumbnailURL,
		asset.Creator,
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset %s: %w", asset.AssetID, err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
