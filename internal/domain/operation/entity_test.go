package operation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/signal"
)

func newTestOperation(side signal.Side) *Operation {
	return &Operation{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Symbol:     "BTCUSDT",
		Side:       side,
		Quantity:   decimal.NewFromInt(2),
		EntryPrice: decimal.NewFromInt(100),
		Status:     StatusOpen,
		OpenedAt:   time.Now(),
	}
}

func TestPnL(t *testing.T) {
	exit := decimal.NewFromInt(110)

	buy := newTestOperation(signal.SideBuy)
	assert.True(t, buy.PnL(exit).Equal(decimal.NewFromInt(20)), "buy profit = qty * (exit - entry)")

	sell := newTestOperation(signal.SideSell)
	assert.True(t, sell.PnL(exit).Equal(decimal.NewFromInt(-20)), "sell profit = qty * (entry - exit)")
}

func TestMarkPrice(t *testing.T) {
	op := newTestOperation(signal.SideBuy)
	op.MarkPrice(decimal.NewFromInt(105), time.Now())

	assert.True(t, op.UnrealizedPnL.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, StatusOpen, op.Status, "marking never mutates status")
}

func TestShouldClose(t *testing.T) {
	tests := []struct {
		name    string
		side    signal.Side
		sl, tp  int64
		current int64
		closed  bool
		reason  string
	}{
		{"buy stop-loss hit", signal.SideBuy, 95, 120, 94, true, "stop-loss triggered"},
		{"buy take-profit hit", signal.SideBuy, 95, 120, 121, true, "take-profit triggered"},
		{"buy inside band", signal.SideBuy, 95, 120, 100, false, ""},
		{"sell stop-loss hit", signal.SideSell, 105, 80, 106, true, "stop-loss triggered"},
		{"sell take-profit hit", signal.SideSell, 105, 80, 79, true, "take-profit triggered"},
		{"sell inside band", signal.SideSell, 105, 80, 100, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := newTestOperation(tt.side)
			op.StopLoss = decimal.NewFromInt(tt.sl)
			op.TakeProfit = decimal.NewFromInt(tt.tp)

			closed, reason := op.ShouldClose(decimal.NewFromInt(tt.current))
			assert.Equal(t, tt.closed, closed)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	op := newTestOperation(signal.SideBuy)

	op.Close(decimal.NewFromInt(110), "take-profit triggered", time.Now())
	require.Equal(t, StatusClosed, op.Status)
	require.NotNil(t, op.Profit)
	firstProfit := *op.Profit
	firstClosedAt := *op.ClosedAt

	// Second close at a different price must change nothing.
	op.Close(decimal.NewFromInt(50), "manual", time.Now().Add(time.Minute))
	assert.Equal(t, StatusClosed, op.Status)
	assert.True(t, op.Profit.Equal(firstProfit))
	assert.Equal(t, firstClosedAt, *op.ClosedAt)
	assert.Equal(t, "take-profit triggered", op.CloseReason)
}

func TestCancelOnlyFromOpen(t *testing.T) {
	op := newTestOperation(signal.SideBuy)
	op.Close(decimal.NewFromInt(110), "manual", time.Now())

	op.Cancel("exchange rejected fill", time.Now())
	assert.Equal(t, StatusClosed, op.Status, "cancel must not override a closed operation")
}
