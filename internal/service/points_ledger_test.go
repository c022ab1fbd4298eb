package service_test

import (
	"errors"
	"testing"

	"dramaforge/internal/service"
	"dramaforge/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsLedger_EarnAndSpend(t *testing.T) {
	l := service.NewPointsLedger(100, 10)

	l.Earn(10)
	assert.Equal(t, 110, l.Points().Balance)
	assert.Equal(t, &models.PointsChange{Amount: 10, Kind: models.PointsChangeEarn}, l.PeekChange())

	require.NoError(t, l.Spend(30))
	assert.Equal(t, 80, l.Points().Balance)
	assert.Equal(t, &models.PointsChange{Amount: 30, Kind: models.PointsChangeSpend}, l.PeekChange())
}

func TestPointsLedger_SpendInsufficient(t *testing.T) {
	l := service.NewPointsLedger(5, 0)

	err := l.Spend(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientPoints))
	assert.Equal(t, 5, l.Points().Balance)
	assert.Nil(t, l.PeekChange(), "failed spend must not record a change")
	assert.False(t, l.CanSpend(10))
	assert.True(t, l.CanSpend(5))
}

func TestPointsLedger_EarnNonPositiveIsNoop(t *testing.T) {
	l := service.NewPointsLedger(50, 0)
	l.Earn(0)
	l.Earn(-5)
	assert.Equal(t, 50, l.Points().Balance)
	assert.Nil(t, l.PeekChange())
}

func TestPointsLedger_NegativeSpendRejected(t *testing.T) {
	l := service.NewPointsLedger(50, 0)
	err := l.Spend(-1)
	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Equal(t, 50, l.Points().Balance)
}

func TestPointsLedger_ChangeIsSingleSlot(t *testing.T) {
	l := service.NewPointsLedger(100, 0)
	l.Earn(10)
	require.NoError(t, l.Spend(20))

	// Незапрошенное изменение перезаписывается
	assert.Equal(t, &models.PointsChange{Amount: 20, Kind: models.PointsChangeSpend}, l.PeekChange())
	assert.NotNil(t, l.PeekChange(), "peek must not consume")

	l.ClearChange()
	assert.Nil(t, l.PeekChange())
}

func TestPointsLedger_DailyRefresh(t *testing.T) {
	l := service.NewPointsLedger(100, 2)

	assert.True(t, l.ConsumeDailyRefresh())
	assert.True(t, l.ConsumeDailyRefresh())
	assert.False(t, l.ConsumeDailyRefresh())
	assert.Equal(t, 0, l.DailyRefreshRemaining())
	assert.Equal(t, 100, l.Points().Balance, "free refreshes do not touch the balance")
	assert.Nil(t, l.PeekChange())
}

func TestPointsLedger_Reset(t *testing.T) {
	l := service.NewPointsLedger(100, 2)
	require.NoError(t, l.Spend(40))
	l.ConsumeDailyRefresh()

	l.Reset(100, 2)

	assert.Equal(t, models.UserPoints{Balance: 100, DailyFreeRefreshRemaining: 2}, l.Points())
	assert.Nil(t, l.PeekChange())
}
