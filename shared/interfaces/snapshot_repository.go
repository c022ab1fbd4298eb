package interfaces

import (
	"context"
	"time"

	"dramaforge/shared/models"
)

// SnapshotRepository хранит последнее состояние сессий, вытесненных из памяти.
//
//go:generate mockery --name SnapshotRepository --output ./mocks --outpkg mocks --case=underscore
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error
	// Get возвращает models.ErrSessionNotFound, если ничего не сохранено.
	Get(ctx context.Context, sessionID string) (*models.SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
}
