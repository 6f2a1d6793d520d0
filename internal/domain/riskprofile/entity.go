package riskprofile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskLevel classifies a user's configured risk appetite
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid checks if risk level is valid
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// String returns string representation
func (l RiskLevel) String() string {
	return string(l)
}

// Profile holds a user's risk configuration and trading history counters.
// Mutated after every closed operation and periodically recalibrated.
// Never deleted, only deactivated.
type Profile struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"`

	RiskLevel       RiskLevel       `db:"risk_level"`
	MaxDailyLoss    decimal.Decimal `db:"max_daily_loss"`
	MaxPositionSize decimal.Decimal `db:"max_position_size"`
	Leverage        int             `db:"leverage"`
	MaxLeverage     int             `db:"max_leverage"`

	// RiskPercentage is the fraction of available balance committed per
	// operation, e.g. 0.02 for 2%.
	RiskPercentage decimal.Decimal `db:"risk_percentage"`

	RiskScore         float64 `db:"risk_score"` // 0-100
	ConsecutiveLosses int     `db:"consecutive_losses"`
	TotalOperations   int     `db:"total_operations"`
	SuccessRate       float64 `db:"success_rate"`

	// Privileged marks operator-designated accounts that earn a score discount.
	Privileged bool `db:"privileged"`

	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RecordOutcome folds a closed operation's result into the history counters.
func (p *Profile) RecordOutcome(won bool, now time.Time) {
	p.TotalOperations++
	if won {
		p.ConsecutiveLosses = 0
	} else {
		p.ConsecutiveLosses++
	}

	wins := p.SuccessRate * float64(p.TotalOperations-1)
	if won {
		wins++
	}
	p.SuccessRate = wins / float64(p.TotalOperations)
	p.UpdatedAt = now
}
