package models

// PointsChangeKind - направление изменения баланса.
type PointsChangeKind string

const (
	PointsChangeEarn  PointsChangeKind = "EARN"
	PointsChangeSpend PointsChangeKind = "SPEND"
)

// UserPoints - баланс зрителя и остаток бесплатных обновлений.
type UserPoints struct {
	Balance                   int `json:"balance"`
	DailyFreeRefreshRemaining int `json:"dailyFreeRefreshRemaining"`
}

// PointsChange - временное уведомление в одной ячейке. Не сохраняется.
type PointsChange struct {
	Amount int              `json:"amount"`
	Kind   PointsChangeKind `json:"kind"`
}
