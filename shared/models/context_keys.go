package models

import "context"

// contextKey - приватный тип для ключей контекста, чтобы избежать коллизий.
type contextKey string

const (
	// ViewerContextKey хранит идентификатор зрителя в контексте запроса.
	ViewerContextKey contextKey = "viewerID"
)

// AnonymousViewer используется, если зритель не передан.
const AnonymousViewer = "anonymous"

// WithViewerID возвращает контекст с id зрителя.
func WithViewerID(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, ViewerContextKey, viewerID)
}

// GetViewerIDFromContext извлекает идентификатор зрителя из контекста.
func GetViewerIDFromContext(ctx context.Context) (string, bool) {
	viewerID, ok := ctx.Value(ViewerContextKey).(string)
	return viewerID, ok && viewerID != ""
}
