package models

// DramaStatus описывает статус драмы в каталоге.
type DramaStatus string

const (
	DramaStatusDraft     DramaStatus = "draft"
	DramaStatusPublished DramaStatus = "published"
	DramaStatusArchived  DramaStatus = "archived"
)

// Drama - интерактивная история. Не меняется во время сессии.
type Drama struct {
	ID                    string      `json:"id" db:"id" yaml:"id"`
	Title                 string      `json:"title" db:"title" yaml:"title"`
	TargetDurationSeconds int         `json:"targetDurationSeconds" db:"target_duration_seconds" yaml:"target_duration_seconds"`
	Status                DramaStatus `json:"status" db:"status" yaml:"status"`
	// TargetFrameCount переопределяет число кадров до конца сессии.
	// 0 - брать из конфигурации.
	TargetFrameCount int `json:"targetFrameCount,omitempty" db:"target_frame_count" yaml:"target_frame_count"`
	// OpeningFrame становится кадром корневого узла.
	OpeningFrame *FrameData `json:"openingFrame,omitempty" db:"-" yaml:"opening_frame"`
}
