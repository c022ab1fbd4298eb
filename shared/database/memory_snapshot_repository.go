package database

import (
	"context"
	"fmt"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"github.com/patrickmn/go-cache"
)

var _ interfaces.SnapshotRepository = (*memorySnapshotRepository)(nil)

type memorySnapshotRepository struct {
	store *cache.Cache
}

// NewMemorySnapshotRepository - хранилище в памяти процесса, если Redis не настроен.
func NewMemorySnapshotRepository() interfaces.SnapshotRepository {
	return &memorySnapshotRepository{store: cache.New(time.Hour, 10*time.Minute)}
}

func (r *memorySnapshotRepository) Save(_ context.Context, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	copied := *snapshot
	r.store.Set(snapshot.SessionID, &copied, ttl)
	return nil
}

func (r *memorySnapshotRepository) Get(_ context.Context, sessionID string) (*models.SessionSnapshot, error) {
	v, ok := r.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
	}
	return v.(*models.SessionSnapshot), nil
}

func (r *memorySnapshotRepository) Delete(_ context.Context, sessionID string) error {
	r.store.Delete(sessionID)
	return nil
}
