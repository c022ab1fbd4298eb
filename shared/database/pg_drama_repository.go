package database

import (
	"context"
	"errors"
	"fmt"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

var _ interfaces.DramaRepository = (*pgDramaRepository)(nil)

const (
	dramaColumns = `id, title, target_duration_seconds, status, target_frame_count,
       opening_script, opening_thumbnail_url, opening_video_url, opening_duration_seconds,
       opening_actor_ids, opening_scene_id, opening_prop_ids`

	getDramaQuery   = `SELECT ` + dramaColumns + ` FROM dramas WHERE id = $1`
	listDramasQuery = `SELECT ` + dramaColumns + ` FROM dramas WHERE status <> 'archived' ORDER BY title`

	upsertDramaQuery = `
INSERT INTO dramas (id, title, target_duration_seconds, status, target_frame_count,
    opening_script, opening_thumbnail_url, opening_video_url, opening_duration_seconds,
    opening_actor_ids, opening_scene_id, opening_prop_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    target_duration_seconds = EXCLUDED.target_duration_seconds,
    status = EXCLUDED.status,
    target_frame_count = EXCLUDED.target_frame_count,
    opening_script = EXCLUDED.opening_script,
    opening_thumbnail_url = EXCLUDED.opening_thumbnail_url,
    opening_video_url = EXCLUDED.opening_video_url,
    opening_duration_seconds = EXCLUDED.opening_duration_seconds,
    opening_actor_ids = EXCLUDED.opening_actor_ids,
    opening_scene_id = EXCLUDED.opening_scene_id,
    opening_prop_ids = EXCLUDED.opening_prop_ids`
)

type pgDramaRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgDramaRepository создает каталог драм в Postgres.
func NewPgDramaRepository(db interfaces.DBTX, logger *zap.Logger) *pgDramaRepository {
	return &pgDramaRepository{
		db:     db,
		logger: logger.Named("PgDramaRepo"),
	}
}

func (r *pgDramaRepository) GetByID(ctx context.Context, dramaID string) (*models.Drama, error) {
	drama, err := scanDrama(r.db.QueryRow(ctx, getDramaQuery, dramaID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrDramaNotFound, dramaID)
		}
		r.logger.Error("Failed to get drama", zap.String("dramaID", dramaID), zap.Error(err))
		return nil, fmt.Errorf("failed to get drama %s: %w", dramaID, err)
	}
	return drama, nil
}

func (r *pgDramaRepository) List(ctx context.Context) ([]models.Drama, error) {
	rows, err := r.db.Query(ctx, listDramasQuery)
	if err != nil {
		r.logger.Error("Failed to list dramas", zap.Error(err))
		return nil, fmt.Errorf("failed to list dramas: %w", err)
	}
	defer rows.Close()

	dramas := make([]models.Drama, 0)
	for rows.Next() {
		drama, err := scanDrama(rows)
		if err != nil {
			r.logger.Error("Failed to scan drama row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan drama: %w", err)
		}
		dramas = append(dramas, *drama)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dramas: %w", err)
	}
	return dramas, nil
}

// Upsert сохраняет драму. Используется при загрузке YAML-каталога.
func (r *pgDramaRepository) Upsert(ctx context.Context, drama models.Drama) error {
	opening := models.FrameData{}
	if drama.OpeningFrame != nil {
		opening = *drama.OpeningFrame
	}
	_, err := r.db.Exec(ctx, upsertDramaQuery,
		drama.ID,
		drama.Title,
		drama.TargetDurationSeconds,
		string(drama.Status),
		drama.TargetFrameCount,
		opening.Script,
		opening.ThumbnailURL,
		opening.VideoURL,
		opening.DurationSeconds,
		pq.Array(nonNilStrings(opening.ActorIDs)),
		opening.SceneID,
		pq.Array(nonNilStrings(opening.PropIDs)),
	)
	if err != nil {
		r.logger.Error("Failed to upsert drama", zap.String("dramaID", drama.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert drama %s: %w", drama.ID, err)
	}
	return nil
}

func scanDrama(row pgx.Row) (*models.Drama, error) {
	var (
		drama    models.Drama
		status   string
		opening  models.FrameData
		actorIDs pq.StringArray
		propIDs  pq.StringArray
	)
	err := row.Scan(
		&drama.ID,
		&drama.Title,
		&drama.TargetDurationSeconds,
		&status,
		&drama.TargetFrameCount,
		&opening.Script,
		&opening.ThumbnailURL,
		&opening.VideoURL,
		&opening.DurationSeconds,
		&actorIDs,
		&opening.SceneID,
		&propIDs,
	)
	if err != nil {
		return nil, err
	}
	drama.Status = models.DramaStatus(status)
	opening.ActorIDs = []string(actorIDs)
	opening.PropIDs = []string(propIDs)
	if opening.Script != "" {
		drama.OpeningFrame = &opening
	}
	return &drama, nil
}

// Колонки text[] NOT NULL, а pq кодирует nil-срез как NULL.
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
