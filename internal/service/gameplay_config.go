package service

import "fmt"

// GameplayConfig - параметры игровой сессии, задаются при создании.
type GameplayConfig struct {
	// CandidatesPerGeneration - размер каждого набора кандидатов.
	CandidatesPerGeneration int
	// EditablePeriod открывает редактируемый слот на каждом N-м шаге. 0 отключает слоты.
	EditablePeriod int
	// EditableSeed сдвигает номер редактируемого слота.
	EditableSeed uint64
	// DailyFreeRefreshes - бесплатные обновления на старте сессии.
	DailyFreeRefreshes int
	RefreshCost        int
	CustomFrameCost    int
	ConfirmationReward int
	// RewardFinalFrame начисляет награду и за подтверждение, завершающее драму.
	RewardFinalFrame bool
	// TargetFrameCount - число подтвержденных кадров до конца сессии, если
	// драма не задает своё.
	TargetFrameCount int
	MaxScriptLength  int
	InitialBalance   int
}

// DefaultGameplayConfig возвращает значения по умолчанию.
func DefaultGameplayConfig() GameplayConfig {
	return GameplayConfig{
		CandidatesPerGeneration: 3,
		EditablePeriod:          1,
		DailyFreeRefreshes:      10,
		RefreshCost:             10,
		CustomFrameCost:         30,
		ConfirmationReward:      10,
		TargetFrameCount:        5,
		MaxScriptLength:         200,
		InitialBalance:          100,
	}
}

// Validate отклоняет конфигурации, с которыми сессия работать не может.
func (c GameplayConfig) Validate() error {
	switch {
	case c.CandidatesPerGeneration <= 0:
		return fmt.Errorf("candidates per generation must be positive, got %d", c.CandidatesPerGeneration)
	case c.EditablePeriod < 0:
		return fmt.Errorf("editable period must not be negative, got %d", c.EditablePeriod)
	case c.DailyFreeRefreshes < 0:
		return fmt.Errorf("daily free refreshes must not be negative, got %d", c.DailyFreeRefreshes)
	case c.RefreshCost < 0 || c.CustomFrameCost < 0 || c.ConfirmationReward < 0:
		return fmt.Errorf("costs and rewards must not be negative")
	case c.TargetFrameCount <= 0:
		return fmt.Errorf("target frame count must be positive, got %d", c.TargetFrameCount)
	case c.MaxScriptLength <= 0:
		return fmt.Errorf("max script length must be positive, got %d", c.MaxScriptLength)
	case c.InitialBalance < 0:
		return fmt.Errorf("initial balance must not be negative, got %d", c.InitialBalance)
	}
	return nil
}
