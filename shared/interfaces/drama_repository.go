package interfaces

import (
	"context"

	"dramaforge/shared/models"
)

// DramaRepository дает доступ на чтение к каталогу драм.
//
//go:generate mockery --name DramaRepository --output ./mocks --outpkg mocks --case=underscore
type DramaRepository interface {
	// GetByID возвращает models.ErrDramaNotFound для неизвестного id.
	GetByID(ctx context.Context, dramaID string) (*models.Drama, error)
	List(ctx context.Context) ([]models.Drama, error)
}
