package interfaces

import "dramaforge/shared/models"

// EventNotifier отправляет события сессии подписчикам. Реализация не должна
// блокировать вызывающего.
type EventNotifier interface {
	Notify(event models.SessionEvent)
}
