package models

// Коды ошибок API
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeSessionBusy        = "SESSION_BUSY"
	ErrCodeInsufficientPoints = "INSUFFICIENT_POINTS"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeGenerationFailed   = "GENERATION_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse - стандартная структура для ответа об ошибке в формате JSON.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DataResponse оборачивает успешный ответ.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// PageResponse - DataResponse с курсором следующей страницы.
type PageResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"nextCursor,omitempty"`
}
