package models

import "time"

// SettlementRequest передается в сервис подтверждения после локальной
// фиксации узла.
type SettlementRequest struct {
	SessionID        string    `json:"sessionId"`
	DramaID          string    `json:"dramaId"`
	Node             StoryNode `json:"node"`
	RegisteredAssets []Asset   `json:"registeredAssets,omitempty"`
	Creator          string    `json:"creator"`
}

// Receipt - квитанция подтверждения. Только для отображения.
type Receipt struct {
	NodeID         string `json:"nodeId"`
	TransactionID  string `json:"transactionId"`
	BlockReference string `json:"blockReference"`
}

// PendingSettlement - зафиксированный узел, подтверждение которого не прошло.
type PendingSettlement struct {
	Request   SettlementRequest `json:"request"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"lastError"`
	FailedAt  time.Time         `json:"failedAt"`
}
