package models

import "time"

// SessionState - текущее состояние сессии воспроизведения.
type SessionState string

const (
	SessionStateLoading       SessionState = "LOADING"
	SessionStateWatching      SessionState = "WATCHING"
	SessionStateGenerating    SessionState = "GENERATING"
	SessionStateChoosing      SessionState = "CHOOSING"
	SessionStateConfirming    SessionState = "CONFIRMING"
	SessionStateCustomEditing SessionState = "CUSTOM_EDITING"
	SessionStateEnded         SessionState = "ENDED"
)

// IsBusy сообщает, выполняется ли внешний вызов.
func (s SessionState) IsBusy() bool {
	return s == SessionStateGenerating || s == SessionStateConfirming
}

// SessionFlags - флаги для UI. Вычисляются из SessionState и не хранятся.
type SessionFlags struct {
	IsLoading       bool `json:"isLoading"`
	IsGenerating    bool `json:"isGenerating"`
	IsConfirming    bool `json:"isConfirming"`
	IsTransitioning bool `json:"isTransitioning"`
	IsCustomMode    bool `json:"isCustomMode"`
	IsDemoEnd       bool `json:"isDemoEnd"`
}

// Flags вычисляет флаги UI из состояния.
func (s SessionState) Flags() SessionFlags {
	return SessionFlags{
		IsLoading:       s == SessionStateLoading,
		IsGenerating:    s == SessionStateGenerating,
		IsConfirming:    s == SessionStateConfirming,
		IsTransitioning: s.IsBusy() || s == SessionStateLoading,
		IsCustomMode:    s == SessionStateCustomEditing,
		IsDemoEnd:       s == SessionStateEnded,
	}
}

// CompositionSnapshot - копия текущей пользовательской композиции.
type CompositionSnapshot struct {
	Actors    []Asset `json:"actors"`
	Scene     *Asset  `json:"scene,omitempty"`
	Props     []Asset `json:"props"`
	Script    string  `json:"script"`
	CanSubmit bool    `json:"canSubmit"`
}

// SessionSnapshot - наблюдаемое состояние сессии на момент вызова.
type SessionSnapshot struct {
	SessionID     string               `json:"sessionId"`
	DramaID       string               `json:"dramaId,omitempty"`
	State         SessionState         `json:"state"`
	Flags         SessionFlags         `json:"flags"`
	NodePath      []StoryNode          `json:"nodePath"`
	Candidates    []CandidateFrame     `json:"candidates"`
	Points        UserPoints           `json:"points"`
	PendingChange *PointsChange        `json:"pendingChange,omitempty"`
	Composition   *CompositionSnapshot `json:"composition,omitempty"`
	TargetFrames  int                  `json:"targetFrames"`
	TakenAt       time.Time            `json:"takenAt"`
}

// CurrentNode возвращает последний узел пути.
func (s *SessionSnapshot) CurrentNode() *StoryNode {
	if len(s.NodePath) == 0 {
		return nil
	}
	return &s.NodePath[len(s.NodePath)-1]
}

// SessionEventType - что изменилось в сессии.
type SessionEventType string

const (
	SessionEventStateChanged   SessionEventType = "state_changed"
	SessionEventNodeCommitted  SessionEventType = "node_committed"
	SessionEventPointsChanged  SessionEventType = "points_changed"
	SessionEventSettlementDone SessionEventType = "settlement_done"
)

// SessionEvent отправляется подписчикам после успешного изменения.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID string           `json:"sessionId"`
	Snapshot  *SessionSnapshot `json:"snapshot,omitempty"`
	Receipt   *Receipt         `json:"receipt,omitempty"`
}
