package mocks

import (
	"context"

	"dramaforge/shared/models"

	"github.com/stretchr/testify/mock"
)

// FrameGenerator is a mock type for the FrameGenerator type
type FrameGenerator struct {
	mock.Mock
}

func (m *FrameGenerator) GenerateFrame(ctx context.Context, req models.FrameRequest) (*models.FrameData, error) {
	args := m.Called(ctx, req)
	frame, _ := args.Get(0).(*models.FrameData)
	return frame, args.Error(1)
}

func (m *FrameGenerator) ComposeFrame(ctx context.Context, params models.CompositionParams) (*models.FrameData, error) {
	args := m.Called(ctx, params)
	frame, _ := args.Get(0).(*models.FrameData)
	return frame, args.Error(1)
}
