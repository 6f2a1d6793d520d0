package sentiment

import (
	"time"

	"github.com/google/uuid"
)

// Classification buckets a Fear & Greed value into its named band.
type Classification string

const (
	ExtremeFear  Classification = "extreme_fear"
	Fear         Classification = "fear"
	Neutral      Classification = "neutral"
	Greed        Classification = "greed"
	ExtremeGreed Classification = "extreme_greed"
)

// ClassifyValue maps an index value [0,100] to exactly one classification.
// Bands follow the Alternative.me convention.
func ClassifyValue(value int) Classification {
	switch {
	case value <= 25:
		return ExtremeFear
	case value <= 45:
		return Fear
	case value <= 55:
		return Neutral
	case value <= 75:
		return Greed
	default:
		return ExtremeGreed
	}
}

// AllowedDirection is the market-wide directional policy derived from the
// latest reading. Pure function of the value, never persisted independently.
type AllowedDirection string

const (
	LongOnly  AllowedDirection = "long_only"
	ShortOnly AllowedDirection = "short_only"
	Both      AllowedDirection = "both"
)

// DirectionForValue derives the allowed-direction policy from an index value.
// Extreme fear favors longs, extreme greed favors shorts.
func DirectionForValue(value int) AllowedDirection {
	switch {
	case value < 30:
		return LongOnly
	case value > 80:
		return ShortOnly
	default:
		return Both
	}
}

// SourceFallback marks a reading synthesized when every provider failed and
// the previous reading was too old to reuse.
const SourceFallback = "fallback"

// Reading is a single Fear & Greed observation. Immutable once created; a new
// reading supersedes the previous one for gating purposes.
type Reading struct {
	ID             uuid.UUID      `db:"id"`
	Value          int            `db:"value"` // 0-100
	Classification Classification `db:"classification"`
	Source         string         `db:"source"`
	ObservedAt     time.Time      `db:"observed_at"`
}

// NewReading builds a reading with classification derived from the value.
func NewReading(value int, source string, observedAt time.Time) *Reading {
	return &Reading{
		ID:             uuid.New(),
		Value:          value,
		Classification: ClassifyValue(value),
		Source:         source,
		ObservedAt:     observedAt,
	}
}

// NewFallbackReading synthesizes the neutral reading used on provider
// exhaustion when the previous reading is too old to reuse.
func NewFallbackReading(now time.Time) *Reading {
	return NewReading(50, SourceFallback, now)
}

// Direction returns the allowed-direction policy for this reading.
func (r *Reading) Direction() AllowedDirection {
	return DirectionForValue(r.Value)
}

// Age reports how old the reading is relative to now.
func (r *Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.ObservedAt)
}
