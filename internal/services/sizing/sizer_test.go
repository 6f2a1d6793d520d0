package sizing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/riskprofile"
	"hermes/internal/domain/signal"
	"hermes/pkg/logger"
)

func testSignal(side signal.Side, price int64) *signal.Signal {
	return &signal.Signal{
		ID:         uuid.New(),
		Symbol:     "BTCUSDT",
		Side:       side,
		Price:      decimal.NewFromInt(price),
		Source:     "test",
		Status:     signal.StatusApproved,
		ReceivedAt: time.Now(),
	}
}

func sizingProfile() *riskprofile.Profile {
	return &riskprofile.Profile{
		UserID:          uuid.New(),
		RiskLevel:       riskprofile.RiskMedium,
		RiskPercentage:  decimal.NewFromFloat(0.02),
		MaxPositionSize: decimal.NewFromInt(10000),
		Leverage:        5,
		MaxLeverage:     10,
		IsActive:        true,
	}
}

func TestSizeBasicOrder(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())

	// 2% of 100000 = 2000 notional at price 100 = 20 units.
	order, err := s.Size(testSignal(signal.SideBuy, 100), sizingProfile(), decimal.NewFromInt(100000), 3)
	require.NoError(t, err)

	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(20)))
	assert.True(t, order.EntryPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, order.StopLoss.Equal(decimal.NewFromInt(98)), "buy stop below entry")
	assert.True(t, order.TakeProfit.Equal(decimal.NewFromInt(104)), "buy target above entry")
	assert.Equal(t, 5, order.Leverage)
}

func TestSizeSellProtectivePricesMirror(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())

	order, err := s.Size(testSignal(signal.SideSell, 100), sizingProfile(), decimal.NewFromInt(100000), 3)
	require.NoError(t, err)

	assert.True(t, order.StopLoss.Equal(decimal.NewFromInt(102)), "sell stop above entry")
	assert.True(t, order.TakeProfit.Equal(decimal.NewFromInt(96)), "sell target below entry")
}

func TestSizeClampsNotionalToMaxPositionSize(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())
	profile := sizingProfile()
	profile.MaxPositionSize = decimal.NewFromInt(500)

	// 2% of 100000 would be 2000, clamped to 500 => 5 units at price 100.
	order, err := s.Size(testSignal(signal.SideBuy, 100), profile, decimal.NewFromInt(100000), 3)
	require.NoError(t, err)
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(5)))
}

func TestSizeRoundsQuantityDown(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())

	// 2% of 1000 = 20 notional at price 300 = 0.0666... => 0.066 at 3 decimals.
	order, err := s.Size(testSignal(signal.SideBuy, 300), sizingProfile(), decimal.NewFromInt(1000), 3)
	require.NoError(t, err)
	assert.True(t, order.Quantity.Equal(decimal.NewFromFloat(0.066)), "got %s", order.Quantity)
}

func TestSizeClampsLeverage(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())
	profile := sizingProfile()
	profile.Leverage = 50
	profile.MaxLeverage = 10

	order, err := s.Size(testSignal(signal.SideBuy, 100), profile, decimal.NewFromInt(100000), 3)
	require.NoError(t, err)
	assert.Equal(t, 10, order.Leverage, "over-leveraged orders are clamped, not rejected")
}

func TestSizeRejectsZeroQuantity(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())

	// 2% of 10 = 0.2 notional at price 50000 rounds to zero at 3 decimals.
	_, err := s.Size(testSignal(signal.SideBuy, 50000), sizingProfile(), decimal.NewFromInt(10), 3)
	assert.Error(t, err)
}

func TestSizeRejectsNonPositiveInputs(t *testing.T) {
	s := NewSizer(0.02, 0.04, logger.Get())

	_, err := s.Size(testSignal(signal.SideBuy, 0), sizingProfile(), decimal.NewFromInt(1000), 3)
	assert.Error(t, err, "non-positive price")

	_, err = s.Size(testSignal(signal.SideBuy, 100), sizingProfile(), decimal.Zero, 3)
	assert.Error(t, err, "no balance")
}
