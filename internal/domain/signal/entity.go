package signal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side defines buy or sell direction
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid checks if side is valid
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// String returns string representation
func (s Side) String() string {
	return string(s)
}

// Status defines signal lifecycle status. A signal transitions exactly once
// into a terminal status and is immutable after.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusDispatched Status = "dispatched"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true once the signal can no longer change
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusDispatched, StatusFailed:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Signal is a directional trade suggestion arriving from an external source
// (TradingView webhook or an internal strategy).
type Signal struct {
	ID         uuid.UUID       `db:"id"`
	Symbol     string          `db:"symbol"`
	Side       Side            `db:"side"`
	Price      decimal.Decimal `db:"price"`
	Source     string          `db:"source"`
	Status     Status          `db:"status"`
	Reason     string          `db:"reason"` // human-readable, set on terminal transition
	ReceivedAt time.Time       `db:"received_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}
