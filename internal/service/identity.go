package service

import (
	"context"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"
)

var _ interfaces.IdentityProvider = ContextIdentity{}

// ContextIdentity читает id зрителя, который middleware положил в контекст.
// Без него запрос выполняется от анонимного зрителя.
type ContextIdentity struct{}

func (ContextIdentity) CurrentIdentity(ctx context.Context) (string, error) {
	if id, ok := models.GetViewerIDFromContext(ctx); ok && id != "" {
		return id, nil
	}
	return models.AnonymousViewer, nil
}

// StaticIdentity всегда возвращает один и тот же id.
type StaticIdentity string

func (s StaticIdentity) CurrentIdentity(context.Context) (string, error) {
	return string(s), nil
}
