package service

import (
	"fmt"
	"sync"

	"dramaforge/shared/models"
)

// PointsLedger хранит баланс зрителя и остаток бесплатных обновлений.
//
// Каждое изменение баланса оставляет ровно одну запись PointsChange и
// перезаписывает непрочитанную предыдущую. UI читает её через PeekChange и
// ClearChange, перезаписанное до чтения изменение теряется.
type PointsLedger struct {
	mu        sync.Mutex
	balance   int
	dailyFree int
	change    *models.PointsChange
}

// NewPointsLedger создает счет с начальным балансом и лимитом обновлений.
func NewPointsLedger(balance, dailyFreeRefreshes int) *PointsLedger {
	return &PointsLedger{balance: balance, dailyFree: dailyFreeRefreshes}
}

// Earn увеличивает баланс. Неположительные суммы игнорируются.
func (l *PointsLedger) Earn(amount int) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += amount
	l.change = &models.PointsChange{Amount: amount, Kind: models.PointsChangeEarn}
}

// Spend списывает очки. Если баланса не хватает, возвращает
// models.ErrInsufficientPoints и ничего не меняет.
func (l *PointsLedger) Spend(amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative spend amount %d", models.ErrBadRequest, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < amount {
		return fmt.Errorf("%w: balance %d, required %d", models.ErrInsufficientPoints, l.balance, amount)
	}
	if amount == 0 {
		return nil
	}
	l.balance -= amount
	l.change = &models.PointsChange{Amount: amount, Kind: models.PointsChangeSpend}
	return nil
}

// CanSpend сообщает, пройдет ли сейчас Spend(amount).
func (l *PointsLedger) CanSpend(amount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return amount >= 0 && l.balance >= amount
}

// ConsumeDailyRefresh забирает одно бесплатное обновление, если оно осталось.
func (l *PointsLedger) ConsumeDailyRefresh() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dailyFree <= 0 {
		return false
	}
	l.dailyFree--
	return true
}

// DailyRefreshRemaining возвращает остаток бесплатных обновлений.
func (l *PointsLedger) DailyRefreshRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyFree
}

// Points возвращает баланс и остаток обновлений.
func (l *PointsLedger) Points() models.UserPoints {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.UserPoints{Balance: l.balance, DailyFreeRefreshRemaining: l.dailyFree}
}

// PeekChange возвращает последнее изменение, не сбрасывая его.
func (l *PointsLedger) PeekChange() *models.PointsChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.change == nil {
		return nil
	}
	c := *l.change
	return &c
}

// ClearChange сбрасывает последнее изменение.
func (l *PointsLedger) ClearChange() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.change = nil
}

// Reset восстанавливает значения по умолчанию и сбрасывает изменение.
func (l *PointsLedger) Reset(balance, dailyFreeRefreshes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = balance
	l.dailyFree = dailyFreeRefreshes
	l.change = nil
}
