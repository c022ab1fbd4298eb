package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ interfaces.SnapshotRepository = (*redisSnapshotRepository)(nil)

type redisSnapshotRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSnapshotRepository хранит снапшоты сессий в JSON с TTL.
func NewRedisSnapshotRepository(client *redis.Client, logger *zap.Logger) interfaces.SnapshotRepository {
	return &redisSnapshotRepository{
		client: client,
		logger: logger.Named("RedisSnapshotRepo"),
	}
}

func snapshotKey(sessionID string) string {
	return fmt.Sprintf("session_snapshot:%s", sessionID)
}

func (r *redisSnapshotRepository) Save(ctx context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(snapshot.SessionID), data, ttl).Err(); err != nil {
		r.logger.Error("Failed to save session snapshot", zap.String("sessionID", snapshot.SessionID), zap.Error(err))
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	r.logger.Debug("Session snapshot saved", zap.String("sessionID", snapshot.SessionID), zap.Duration("ttl", ttl))
	return nil
}

func (r *redisSnapshotRepository) Get(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
		}
		r.logger.Error("Failed to get session snapshot", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get session snapshot: %w", err)
	}
	var snapshot models.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *redisSnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		r.logger.Error("Failed to delete session snapshot", zap.String("sessionID", sessionID), zap.Error(err))
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}
