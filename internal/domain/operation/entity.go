package operation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/credential"
	"hermes/internal/domain/signal"
)

// Status defines operation lifecycle status
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true for closed and cancelled
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Operation is a dispatched, exchange-tracked position from open to close.
type Operation struct {
	ID       uuid.UUID  `db:"id"`
	UserID   uuid.UUID  `db:"user_id"`
	SignalID *uuid.UUID `db:"signal_id"`

	Symbol string      `db:"symbol"`
	Side   signal.Side `db:"side"`

	Quantity   decimal.Decimal  `db:"quantity"`
	EntryPrice decimal.Decimal  `db:"entry_price"`
	ExitPrice  *decimal.Decimal `db:"exit_price"`
	StopLoss   decimal.Decimal  `db:"stop_loss"`
	TakeProfit decimal.Decimal  `db:"take_profit"`
	Leverage   int              `db:"leverage"`

	Exchange        credential.Exchange `db:"exchange"`
	ExchangeOrderID string              `db:"exchange_order_id"`

	Status        Status           `db:"status"`
	Profit        *decimal.Decimal `db:"profit"`
	UnrealizedPnL decimal.Decimal  `db:"unrealized_pnl"`
	CloseReason   string           `db:"close_reason"`

	OpenedAt  time.Time  `db:"opened_at"`
	ClosedAt  *time.Time `db:"closed_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// PnL computes profit for a hypothetical exit at the given price.
// Buy: quantity × (exit − entry). Sell: quantity × (entry − exit).
func (o *Operation) PnL(exitPrice decimal.Decimal) decimal.Decimal {
	if o.Side == signal.SideBuy {
		return o.Quantity.Mul(exitPrice.Sub(o.EntryPrice))
	}
	return o.Quantity.Mul(o.EntryPrice.Sub(exitPrice))
}

// MarkPrice recomputes unrealized PnL against the current price without
// touching status.
func (o *Operation) MarkPrice(currentPrice decimal.Decimal, now time.Time) {
	o.UnrealizedPnL = o.PnL(currentPrice)
	o.UpdatedAt = now
}

// ShouldClose reports whether the current price has crossed stop-loss or
// take-profit for this operation's side. The returned reason is empty when
// no trigger fired.
func (o *Operation) ShouldClose(currentPrice decimal.Decimal) (bool, string) {
	if o.Side == signal.SideBuy {
		if o.StopLoss.IsPositive() && currentPrice.LessThanOrEqual(o.StopLoss) {
			return true, "stop-loss triggered"
		}
		if o.TakeProfit.IsPositive() && currentPrice.GreaterThanOrEqual(o.TakeProfit) {
			return true, "take-profit triggered"
		}
		return false, ""
	}
	if o.StopLoss.IsPositive() && currentPrice.GreaterThanOrEqual(o.StopLoss) {
		return true, "stop-loss triggered"
	}
	if o.TakeProfit.IsPositive() && currentPrice.LessThanOrEqual(o.TakeProfit) {
		return true, "take-profit triggered"
	}
	return false, ""
}

// Close transitions to Closed with realized PnL. Idempotent: closing an
// already-terminal operation is a no-op success.
func (o *Operation) Close(exitPrice decimal.Decimal, reason string, now time.Time) {
	if o.Status.IsTerminal() {
		return
	}
	profit := o.PnL(exitPrice)
	o.Status = StatusClosed
	o.ExitPrice = &exitPrice
	o.Profit = &profit
	o.UnrealizedPnL = decimal.Zero
	o.CloseReason = reason
	o.ClosedAt = &now
	o.UpdatedAt = now
}

// Cancel transitions to Cancelled, used only when the exchange rejects the
// fill post-dispatch. Idempotent like Close.
func (o *Operation) Cancel(reason string, now time.Time) {
	if o.Status.IsTerminal() {
		return
	}
	o.Status = StatusCancelled
	o.CloseReason = reason
	o.ClosedAt = &now
	o.UpdatedAt = now
}
