package interfaces

import (
	"context"

	"dramaforge/shared/models"
)

// FrameGenerator - внешний генератор медиа. Возвращает FrameData или ошибку.
//
//go:generate mockery --name FrameGenerator --output ./mocks --outpkg mocks --case=underscore
type FrameGenerator interface {
	GenerateFrame(ctx context.Context, req models.FrameRequest) (*models.FrameData, error)
	ComposeFrame(ctx context.Context, params models.CompositionParams) (*models.FrameData, error)
}
