package risk

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hermes/internal/domain/riskprofile"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const (
	// baseScore is the floor every assessment starts from.
	baseScore = 30.0

	// approvalThreshold: scores at or above this are blocked.
	approvalThreshold = 70.0

	scoreLargeNotional    = 20.0
	scoreHighRiskLevel    = 15.0
	scorePerConsecLoss    = 5.0
	scorePrivilegedCredit = 10.0
)

// Candidate describes the order under assessment.
type Candidate struct {
	Symbol           string
	Notional         decimal.Decimal // order value in quote currency
	AvailableBalance decimal.Decimal
}

// Assessment is the evaluator's verdict.
type Assessment struct {
	Approved  bool
	RiskScore float64
	Reason    string
}

// Evaluator scores candidate operations against per-user risk profiles.
type Evaluator struct {
	profiles riskprofile.Repository

	// notionalBalanceFraction is the share of available balance above which
	// an order's notional is considered large. Default 10%.
	notionalBalanceFraction decimal.Decimal
	log                     *logger.Logger
}

// NewEvaluator creates a new risk evaluator
func NewEvaluator(profiles riskprofile.Repository, notionalBalanceFraction float64, log *logger.Logger) *Evaluator {
	if notionalBalanceFraction <= 0 {
		notionalBalanceFraction = 0.10
	}
	return &Evaluator{
		profiles:                profiles,
		notionalBalanceFraction: decimal.NewFromFloat(notionalBalanceFraction),
		log:                     log,
	}
}

// Assess scores a candidate order for a user. A missing risk profile is a
// hard rejection, never a silent default: an unknown user must not bypass
// risk control. Every assessment increments the approved/blocked counters
// regardless of outcome.
func (e *Evaluator) Assess(ctx context.Context, userID uuid.UUID, candidate Candidate) (Assessment, error) {
	profile, err := e.profiles.GetByUser(ctx, userID)
	if err != nil || profile == nil || !profile.IsActive {
		metrics.RiskAssessments.WithLabelValues("blocked").Inc()
		e.log.Warnw("Risk assessment blocked: no active profile",
			"user_id", userID,
			"error", err,
		)
		return Assessment{
			Approved:  false,
			RiskScore: 100,
			Reason:    "profile not found",
		}, errors.ErrRiskProfileNotFound
	}

	score := baseScore

	if e.isLargeNotional(candidate) {
		score += scoreLargeNotional
	}
	if profile.RiskLevel == riskprofile.RiskHigh {
		score += scoreHighRiskLevel
	}
	score += scorePerConsecLoss * float64(profile.ConsecutiveLosses)
	if profile.Privileged {
		score -= scorePrivilegedCredit
	}

	score = clamp(score, 0, 100)
	approved := score < approvalThreshold
	metrics.RiskScore.Observe(score)

	assessment := Assessment{
		Approved:  approved,
		RiskScore: score,
	}
	if approved {
		metrics.RiskAssessments.WithLabelValues("approved").Inc()
	} else {
		metrics.RiskAssessments.WithLabelValues("blocked").Inc()
		assessment.Reason = e.blockReason(profile, candidate)
	}

	e.log.Debugw("Risk assessment complete",
		"user_id", userID,
		"symbol", candidate.Symbol,
		"score", score,
		"approved", approved,
		"consecutive_losses", profile.ConsecutiveLosses,
	)

	return assessment, nil
}

func (e *Evaluator) isLargeNotional(c Candidate) bool {
	if c.AvailableBalance.IsZero() {
		return true
	}
	limit := c.AvailableBalance.Mul(e.notionalBalanceFraction)
	return c.Notional.GreaterThan(limit)
}

func (e *Evaluator) blockReason(p *riskprofile.Profile, c Candidate) string {
	switch {
	case p.ConsecutiveLosses > 0:
		return "risk score above threshold: consecutive losses elevate exposure"
	case e.isLargeNotional(c):
		return "risk score above threshold: order notional too large for balance"
	default:
		return "risk score above threshold"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
