package sizing

import (
	"github.com/shopspring/decimal"

	"hermes/internal/domain/riskprofile"
	"hermes/internal/domain/signal"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Order is a fully sized order ready for dispatch. Prices and quantities are
// exact decimals; the quantity is already rounded to the instrument's
// precision.
type Order struct {
	Symbol     string
	Side       signal.Side
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Leverage   int
	Notional   decimal.Decimal
}

// Sizer turns an approved signal plus risk profile and balance into a
// concrete order. It performs no exchange-specific rounding beyond the
// quantity precision supplied by the caller.
type Sizer struct {
	stopLossPct   decimal.Decimal
	takeProfitPct decimal.Decimal
	log           *logger.Logger
}

// NewSizer creates a new order sizer
func NewSizer(stopLossPct, takeProfitPct float64, log *logger.Logger) *Sizer {
	return &Sizer{
		stopLossPct:   decimal.NewFromFloat(stopLossPct),
		takeProfitPct: decimal.NewFromFloat(takeProfitPct),
		log:           log,
	}
}

// Size computes the order for a signal. Notional is the available balance
// times the profile's risk percentage, clamped to maxPositionSize. Quantity
// is notional over entry price, rounded down to quantityPrecision decimal
// places. Leverage comes from the profile verbatim; values over maxLeverage
// are clamped, not rejected, and the clamp is logged.
func (s *Sizer) Size(
	sig *signal.Signal,
	profile *riskprofile.Profile,
	available decimal.Decimal,
	quantityPrecision int32,
) (*Order, error) {
	if sig.Price.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Newf("signal %s has non-positive price %s", sig.ID, sig.Price)
	}
	if available.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Newf("no available balance for %s order on %s", sig.Side, sig.Symbol)
	}

	riskPct := profile.RiskPercentage
	if riskPct.LessThanOrEqual(decimal.Zero) {
		riskPct = decimal.NewFromFloat(0.02)
	}

	notional := available.Mul(riskPct)
	if profile.MaxPositionSize.IsPositive() && notional.GreaterThan(profile.MaxPositionSize) {
		notional = profile.MaxPositionSize
	}

	quantity := notional.Div(sig.Price).RoundDown(quantityPrecision)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Newf(
			"sized quantity rounds to zero: notional %s at price %s precision %d",
			notional, sig.Price, quantityPrecision,
		)
	}

	leverage := profile.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	if profile.MaxLeverage > 0 && leverage > profile.MaxLeverage {
		s.log.Warnw("Leverage clamped to profile maximum",
			"user_id", profile.UserID,
			"symbol", sig.Symbol,
			"requested", leverage,
			"max", profile.MaxLeverage,
		)
		leverage = profile.MaxLeverage
	}

	stopLoss, takeProfit := s.protectivePrices(sig.Side, sig.Price)

	return &Order{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Quantity:   quantity,
		EntryPrice: sig.Price,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Leverage:   leverage,
		Notional:   quantity.Mul(sig.Price),
	}, nil
}

// protectivePrices places the stop below and the target above the entry for
// buys, mirrored for sells.
func (s *Sizer) protectivePrices(side signal.Side, entry decimal.Decimal) (stopLoss, takeProfit decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if side == signal.SideBuy {
		stopLoss = entry.Mul(one.Sub(s.stopLossPct))
		takeProfit = entry.Mul(one.Add(s.takeProfitPct))
		return stopLoss, takeProfit
	}
	stopLoss = entry.Mul(one.Add(s.stopLossPct))
	takeProfit = entry.Mul(one.Sub(s.takeProfitPct))
	return stopLoss, takeProfit
}
