package riskprofile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordOutcome(t *testing.T) {
	p := &Profile{ConsecutiveLosses: 2, TotalOperations: 4, SuccessRate: 0.5}

	p.RecordOutcome(false, time.Now())
	assert.Equal(t, 3, p.ConsecutiveLosses)
	assert.Equal(t, 5, p.TotalOperations)
	assert.InDelta(t, 0.4, p.SuccessRate, 1e-9)

	p.RecordOutcome(true, time.Now())
	assert.Equal(t, 0, p.ConsecutiveLosses, "a win resets the loss streak")
	assert.Equal(t, 6, p.TotalOperations)
	assert.InDelta(t, 0.5, p.SuccessRate, 1e-9)
}

func TestRecordOutcomeFirstOperation(t *testing.T) {
	p := &Profile{}

	p.RecordOutcome(true, time.Now())
	assert.Equal(t, 1, p.TotalOperations)
	assert.InDelta(t, 1.0, p.SuccessRate, 1e-9)
}
