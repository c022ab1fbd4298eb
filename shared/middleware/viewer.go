package middleware

import (
	"strings"

	"dramaforge/shared/models"

	"github.com/gin-gonic/gin"
)

// ViewerIDHeader идентифицирует зрителя. Аутентификации нет, значение
// используется только как автор новых ассетов.
const ViewerIDHeader = "X-Viewer-ID"

const maxViewerIDLength = 128

// ViewerIdentity кладет id зрителя из заголовка в контекст запроса.
// Пустой или слишком длинный id заменяется анонимным.
func ViewerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewerID := strings.TrimSpace(c.GetHeader(ViewerIDHeader))
		if viewerID == "" || len(viewerID) > maxViewerIDLength {
			viewerID = models.AnonymousViewer
		}
		c.Request = c.Request.WithContext(models.WithViewerID(c.Request.Context(), viewerID))
		c.Next()
	}
}
