package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"
)

var _ interfaces.DramaRepository = (*memoryDramaRepository)(nil)

type memoryDramaRepository struct {
	mu     sync.RWMutex
	dramas map[string]models.Drama
}

// NewMemoryDramaRepository создает каталог в памяти только для чтения.
func NewMemoryDramaRepository(dramas []models.Drama) interfaces.DramaRepository {
	repo := &memoryDramaRepository{dramas: make(map[string]models.Drama, len(dramas))}
	for _, d := range dramas {
		repo.dramas[d.ID] = d
	}
	return repo
}

func (r *memoryDramaRepository) GetByID(_ context.Context, dramaID string) (*models.Drama, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dramas[dramaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDramaNotFound, dramaID)
	}
	return &d, nil
}

func (r *memoryDramaRepository) List(_ context.Context) ([]models.Drama, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Drama, 0, len(r.dramas))
	for _, d := range r.dramas {
		if d.Status == models.DramaStatusArchived {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
