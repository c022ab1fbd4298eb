package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Ошибки поиска
	ErrNotFound          = errors.New("resource not found")
	ErrDramaNotFound     = fmt.Errorf("%w: drama", ErrNotFound)
	ErrAssetNotFound     = fmt.Errorf("%w: asset", ErrNotFound)
	ErrCandidateNotFound = fmt.Errorf("%w: candidate", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("%w: session", ErrNotFound)

	// Ошибки состояния сессии
	ErrInvalidState = errors.New("operation is not allowed in the current session state")
	// ErrSessionBusy возвращается, пока идет генерация или подтверждение.
	ErrSessionBusy = fmt.Errorf("%w: session is busy", ErrInvalidState)

	// Ошибки счета очков
	ErrInsufficientPoints = errors.New("insufficient points")

	// Ошибки пользовательской композиции
	ErrValidation = errors.New("validation failed")

	// Внешние сервисы
	ErrGenerationFailure = errors.New("frame generation failed")
	ErrSettlementFailed  = errors.New("settlement failed")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)
