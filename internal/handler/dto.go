package handler

import (
	"dramaforge/internal/service"
	"dramaforge/shared/models"
)

type createSessionRequest struct {
	DramaID string `json:"dramaId" binding:"required"`
}

// compositionRequest ссылается на ассеты каталога по id. Ассеты зрителя
// передаются в newAssets.
type compositionRequest struct {
	ActorIDs  []string          `json:"actorIds"`
	SceneID   string            `json:"sceneId"`
	PropIDs   []string          `json:"propIds"`
	Script    string            `json:"script"`
	NewAssets []newAssetRequest `json:"newAssets"`
}

type newAssetRequest struct {
	AssetID      string `json:"assetId" binding:"required"`
	AssetType    string `json:"assetType" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

func (r compositionRequest) toDraft() (service.CompositionDraft, error) {
	draft := service.CompositionDraft{
		ActorIDs: r.ActorIDs,
		SceneID:  r.SceneID,
		PropIDs:  r.PropIDs,
		Script:   r.Script,
	}
	for _, na := range r.NewAssets {
		t, err := models.ParseAssetType(na.AssetType)
		if err != nil {
			return service.CompositionDraft{}, err
		}
		draft.NewAssets = append(draft.NewAssets, models.Asset{
			AssetID:      na.AssetID,
			AssetType:    t,
			Name:         na.Name,
			Description:  na.Description,
			ThumbnailURL: na.ThumbnailURL,
		})
	}
	return draft, nil
}

type pointsChangeResponse struct {
	Change *models.PointsChange `json:"change"`
	Points models.UserPoints    `json:"points"`
}

type pendingSettlementsResponse struct {
	Pending []models.PendingSettlement `json:"pending"`
	Retried int                        `json:"retried,omitempty"`
}
