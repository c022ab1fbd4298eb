package mocks

import (
	"dramaforge/shared/models"

	"github.com/stretchr/testify/mock"
)

// EventNotifier is a mock type for the EventNotifier type
type EventNotifier struct {
	mock.Mock
}

func (m *EventNotifier) Notify(event models.SessionEvent) {
	m.Called(event)
}
