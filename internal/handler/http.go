package handler

import (
	"errors"
	"fmt"
	"net/http"

	"dramaforge/internal/delivery/websocket"
	"dramaforge/internal/service"
	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"
	"dramaforge/shared/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler обрабатывает HTTP запросы к сессиям, реестру ассетов и каталогу драм.
type SessionHandler struct {
	sessions   *service.SessionManager
	registry   *service.AssetRegistry
	dramas     interfaces.DramaRepository
	reconciler *service.Reconciler
	ws         *websocket.WebSocketManager
	logger     *zap.Logger
}

// NewSessionHandler создает обработчик. reconciler и ws могут быть nil.
func NewSessionHandler(
	sessions *service.SessionManager,
	registry *service.AssetRegistry,
	dramas interfaces.DramaRepository,
	reconciler *service.Reconciler,
	ws *websocket.WebSocketManager,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		registry:   registry,
		dramas:     dramas,
		reconciler: reconciler,
		ws:         ws,
		logger:     logger.Named("SessionHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *SessionHandler) RegisterRoutes(r gin.IRouter) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.createSession)
		sessions.GET("/:id", h.getSession)
		sessions.DELETE("/:id", h.closeSession)
		sessions.POST("/:id/candidates", h.requestCandidates)
		sessions.POST("/:id/refresh", h.refreshCandidates)
		sessions.POST("/:id/candidates/:cid/select", h.selectCandidate)
		sessions.POST("/:id/custom", h.enterCustomMode)
		sessions.DELETE("/:id/custom", h.exitCustomMode)
		sessions.PUT("/:id/custom/composition", h.updateComposition)
		sessions.POST("/:id/custom/submit", h.submitCustomFrame)
		sessions.POST("/:id/custom/discard", h.discardCustomCandidate)
		sessions.POST("/:id/restart", h.restart)
		sessions.GET("/:id/points/change", h.peekPointsChange)
		sessions.DELETE("/:id/points/change", h.clearPointsChange)
		sessions.GET("/:id/settlements/pending", h.pendingSettlements)
		sessions.POST("/:id/settlements/retry", h.retrySettlements)
		sessions.GET("/:id/ws", h.streamEvents)
	}

	r.GET("/assets", h.searchAssets)
	r.GET("/assets/:id", h.getAsset)
	r.GET("/dramas", h.listDramas)
}

func (h *SessionHandler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request data: " + err.Error()})
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), req.DramaID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

func (h *SessionHandler) getSession(c *gin.Context) {
	snap, err := h.sessions.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) closeSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mutate выполняет операцию над сессией и отвечает ее снапшотом.
func (h *SessionHandler) mutate(c *gin.Context, op func(s *service.Session) error) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if err := op(sess); err != nil {
		h.handleServiceError(c, err)
		return
	}
	// Снапшот в хранилище только для чтения после вытеснения; ошибка не ломает ответ.
	if err := h.sessions.Persist(c.Request.Context(), sess); err != nil {
		h.logger.Warn("Failed to persist session snapshot", zap.String("sessionID", sess.ID()), zap.Error(err))
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) requestCandidates(c *gin.Context) {
	h.mutate(c, func(s *service.Session) error { return s.RequestCandidates(c.Request.Context()) })
}

func (h *SessionHandler) refreshCandidates(c *gin.Context) {
	h.mutate(c, func(s *service.Session) error { return s.RefreshCandidates(c.Request.Context()) })
}

func (h *SessionHandler) selectCandidate(c *gin.Context) {
	cid := c.Param("cid")
	h.mutate(c, func(s *service.Session) error { return s.SelectCandidate(c.Request.Context(), cid) })
}

func (h *SessionHandler) enterCustomMode(c *gin.Context) {
	h.mutate(c, func(s *service.Session) error { return s.EnterCustomMode() })
}

func (h *SessionHandler) exitCustomMode(c *gin.Context) {
	h.mutate(c, func(s *service.Session) error { return s.ExitCustomMode() })
}

func (h *SessionHandler) updateComposition(c *gin.Context) {
	draft, ok := h.bindComposition(c)
	if !ok {
		return
	}
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	snap, err := sess.UpdateComposition(c.Request.Context(), draft)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) submitCustomFrame(c *gin.Context) {
	draft, ok := h.bindComposition(c)
	if !ok {
		return
	}
	h.mutate(c, func(s *service.Session) error { return s.SubmitCustomFrame(c.Request.Context(), draft) })
}

func (h *SessionHandler) discardCustomCandidate(c *gin.Context) {
	h.mutate(c, func(s *service.Session) error { return s.DiscardCustomCandidate() })
}

func (h *SessionHandler) restart(c *gin.Context) {
	h.mutate(c, func(s *service.Session) error { return s.Restart(c.Request.Context()) })
}

func (h *SessionHandler) peekPointsChange(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pointsChangeResponse{Change: sess.PeekPointsChange(), Points: sess.Points()})
}

func (h *SessionHandler) clearPointsChange(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	sess.ClearPointsChange()
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) pendingSettlements(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pendingSettlementsResponse{Pending: sess.PendingSettlements()})
}

func (h *SessionHandler) retrySettlements(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if h.reconciler == nil {
		c.JSON(http.StatusOK, pendingSettlementsResponse{Pending: []models.PendingSettlement{}})
		return
	}
	settled, err := h.reconciler.RetryPendingFor(c.Request.Context(), sess.ID())
	if err != nil {
		h.logger.Warn("Some settlements are still pending", zap.String("sessionID", sess.ID()), zap.Error(err))
	}
	c.JSON(http.StatusOK, pendingSettlementsResponse{Pending: sess.PendingSettlements(), Retried: settled})
}

func (h *SessionHandler) streamEvents(c *gin.Context) {
	if h.ws == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Realtime events are disabled"})
		return
	}
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	viewerID, _ := models.GetViewerIDFromContext(c.Request.Context())
	h.ws.Serve(c.Writer, c.Request, sess.ID(), viewerID)
}

func (h *SessionHandler) searchAssets(c *gin.Context) {
	assetType, err := models.ParseAssetType(c.Query("type"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	limit, err := utils.ParseLimit(c.Query("limit"))
	if err != nil {
		h.handleServiceError(c, fmt.Errorf("%w: %w", models.ErrBadRequest, err))
		return
	}
	offset, lastID, err := utils.DecodeOffsetCursor(c.Query("cursor"))
	if err != nil {
		h.handleServiceError(c, fmt.Errorf("%w: %w", models.ErrBadRequest, err))
		return
	}
	assets, err := h.registry.Search(c.Request.Context(), c.Query("q"), assetType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.AssetID
	}
	start := utils.PageStart(ids, offset, lastID)
	end := min(start+limit, len(assets))
	resp := models.PageResponse{Data: assets[start:end]}
	if end < len(assets) {
		resp.NextCursor = utils.EncodeOffsetCursor(end, ids[end-1])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) getAsset(c *gin.Context) {
	asset, err := h.registry.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *SessionHandler) listDramas(c *gin.Context) {
	dramas, err := h.dramas.List(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DataResponse{Data: dramas})
}

func (h *SessionHandler) bindComposition(c *gin.Context) (service.CompositionDraft, bool) {
	var req compositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request data: " + err.Error()})
		return service.CompositionDraft{}, false
	}
	draft, err := req.toDraft()
	if err != nil {
		h.handleServiceError(c, err)
		return service.CompositionDraft{}, false
	}
	return draft, true
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrSessionBusy):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeSessionBusy, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidState):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeInvalidState, Message: err.Error()}
	case errors.Is(err, models.ErrInsufficientPoints):
		statusCode = http.StatusPaymentRequired
		errResp = models.ErrorResponse{Code: models.ErrCodeInsufficientPoints, Message: err.Error()}
	case errors.Is(err, models.ErrValidation):
		statusCode = http.StatusUnprocessableEntity
		errResp = models.ErrorResponse{Code: models.ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, models.ErrGenerationFailure):
		statusCode = http.StatusServiceUnavailable
		errResp = models.ErrorResponse{Code: models.ErrCodeGenerationFailed, Message: "Frame generation failed, please retry"}
	default:
		h.logger.Error("Unhandled internal error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
