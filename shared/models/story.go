package models

// FrameData описывает один кадр истории. После привязки к StoryNode или
// CandidateFrame не меняется.
type FrameData struct {
	Script          string   `json:"script" yaml:"script"`
	ThumbnailURL    string   `json:"thumbnailUrl,omitempty" yaml:"thumbnail_url"`
	VideoURL        string   `json:"videoUrl,omitempty" yaml:"video_url"`
	DurationSeconds float64  `json:"durationSeconds" yaml:"duration_seconds"`
	ActorIDs        []string `json:"actorIds" yaml:"actor_ids"`
	SceneID         string   `json:"sceneId,omitempty" yaml:"scene_id"`
	PropIDs         []string `json:"propIds" yaml:"prop_ids"`
}

// AssetIDs возвращает id всех ассетов кадра без повторов: актеры, сцена, реквизит.
func (f FrameData) AssetIDs() []string {
	seen := make(map[string]struct{}, len(f.ActorIDs)+len(f.PropIDs)+1)
	ids := make([]string, 0, len(f.ActorIDs)+len(f.PropIDs)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range f.ActorIDs {
		add(id)
	}
	add(f.SceneID)
	for _, id := range f.PropIDs {
		add(id)
	}
	return ids
}

// Clone возвращает глубокую копию, срезы узла наружу не отдаются.
func (f FrameData) Clone() FrameData {
	out := f
	out.ActorIDs = append([]string(nil), f.ActorIDs...)
	out.PropIDs = append([]string(nil), f.PropIDs...)
	return out
}

// StoryNode - подтвержденный шаг истории.
type StoryNode struct {
	NodeID         string    `json:"nodeId"`
	ParentNodeIDs  []string  `json:"parentNodeIds"`
	Depth          int       `json:"depth"`
	ConfirmedFrame FrameData `json:"confirmedFrame"`
	// TotalVisits - число входов в узел по всем сессиям. Линейная сессия его не меняет.
	TotalVisits int `json:"totalVisits"`
}

// CandidateFrame - предложенный, еще не подтвержденный шаг.
type CandidateFrame struct {
	CandidateID string    `json:"candidateId"`
	FrameData   FrameData `json:"frameData"`
	IsEditable  bool      `json:"isEditable"`
	// NewAssets - ассеты зрителя, которых еще нет в реестре. Регистрируются
	// при подтверждении.
	NewAssets []Asset `json:"newAssets,omitempty"`
}

// FrameRequest - запрос к генератору на один слот после Node.
type FrameRequest struct {
	DramaID  string    `json:"dramaId"`
	Node     StoryNode `json:"node"`
	Slot     int       `json:"slot"`
	Editable bool      `json:"editable"`
}

// CompositionParams - пользовательская композиция в виде запроса к генератору.
type CompositionParams struct {
	DramaID  string    `json:"dramaId"`
	Node     StoryNode `json:"node"`
	Script   string    `json:"script"`
	ActorIDs []string  `json:"actorIds"`
	SceneID  string    `json:"sceneId"`
	PropIDs  []string  `json:"propIds"`
}
