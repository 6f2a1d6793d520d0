package sentiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyValue(t *testing.T) {
	tests := []struct {
		value    int
		expected Classification
	}{
		{0, ExtremeFear},
		{25, ExtremeFear},
		{26, Fear},
		{45, Fear},
		{46, Neutral},
		{50, Neutral},
		{55, Neutral},
		{56, Greed},
		{75, Greed},
		{76, ExtremeGreed},
		{100, ExtremeGreed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifyValue(tt.value), "value %d", tt.value)
	}
}

func TestDirectionForValue(t *testing.T) {
	tests := []struct {
		value    int
		expected AllowedDirection
	}{
		{0, LongOnly},
		{29, LongOnly},
		{30, Both},
		{50, Both},
		{80, Both},
		{81, ShortOnly},
		{100, ShortOnly},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DirectionForValue(tt.value), "value %d", tt.value)
	}
}

func TestNewReading(t *testing.T) {
	observed := time.Now()
	r := NewReading(25, "alternative.me", observed)

	assert.NotEqual(t, "", r.ID.String())
	assert.Equal(t, 25, r.Value)
	assert.Equal(t, ExtremeFear, r.Classification)
	assert.Equal(t, "alternative.me", r.Source)
	assert.Equal(t, LongOnly, r.Direction())
}

func TestNewFallbackReading(t *testing.T) {
	r := NewFallbackReading(time.Now())

	assert.Equal(t, 50, r.Value)
	assert.Equal(t, Neutral, r.Classification)
	assert.Equal(t, SourceFallback, r.Source)
	assert.Equal(t, Both, r.Direction())
}

func TestReadingAge(t *testing.T) {
	observed := time.Now().Add(-2 * time.Hour)
	r := NewReading(40, "alternative.me", observed)

	age := r.Age(time.Now())
	assert.InDelta(t, (2 * time.Hour).Seconds(), age.Seconds(), 1)
}
