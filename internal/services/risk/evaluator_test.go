package risk

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/riskprofile"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

type mockProfileRepo struct {
	profiles map[uuid.UUID]*riskprofile.Profile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[uuid.UUID]*riskprofile.Profile)}
}

func (m *mockProfileRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*riskprofile.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return p, nil
}

func (m *mockProfileRepo) Create(ctx context.Context, p *riskprofile.Profile) error {
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockProfileRepo) Update(ctx context.Context, p *riskprofile.Profile) error {
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockProfileRepo) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if p, ok := m.profiles[userID]; ok {
		p.IsActive = false
	}
	return nil
}

func (m *mockProfileRepo) ListActive(ctx context.Context, limit, offset int) ([]*riskprofile.Profile, error) {
	var out []*riskprofile.Profile
	for _, p := range m.profiles {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func testProfile(userID uuid.UUID) *riskprofile.Profile {
	return &riskprofile.Profile{
		ID:             uuid.New(),
		UserID:         userID,
		RiskLevel:      riskprofile.RiskLow,
		RiskPercentage: decimal.NewFromFloat(0.02),
		IsActive:       true,
	}
}

func candidate(notional, balance int64) Candidate {
	return Candidate{
		Symbol:           "BTCUSDT",
		Notional:         decimal.NewFromInt(notional),
		AvailableBalance: decimal.NewFromInt(balance),
	}
}

func TestAssessBaseCaseApproved(t *testing.T) {
	repo := newMockProfileRepo()
	userID := uuid.New()
	repo.profiles[userID] = testProfile(userID)

	e := NewEvaluator(repo, 0.10, logger.Get())

	// 5% of balance, low risk, no losses: base score only.
	a, err := e.Assess(context.Background(), userID, candidate(50, 1000))
	require.NoError(t, err)
	assert.True(t, a.Approved)
	assert.Equal(t, 30.0, a.RiskScore)
	assert.Empty(t, a.Reason)
}

func TestAssessScoreComponents(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*riskprofile.Profile)
		candidate Candidate
		wantScore float64
	}{
		{
			"large notional adds 20",
			func(p *riskprofile.Profile) {},
			candidate(200, 1000),
			50,
		},
		{
			"high risk level adds 15",
			func(p *riskprofile.Profile) { p.RiskLevel = riskprofile.RiskHigh },
			candidate(50, 1000),
			45,
		},
		{
			"each consecutive loss adds 5",
			func(p *riskprofile.Profile) { p.ConsecutiveLosses = 3 },
			candidate(50, 1000),
			45,
		},
		{
			"privileged tier subtracts 10",
			func(p *riskprofile.Profile) { p.Privileged = true },
			candidate(50, 1000),
			20,
		},
		{
			"score clamps at 100",
			func(p *riskprofile.Profile) {
				p.RiskLevel = riskprofile.RiskHigh
				p.ConsecutiveLosses = 20
			},
			candidate(200, 1000),
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockProfileRepo()
			userID := uuid.New()
			profile := testProfile(userID)
			tt.mutate(profile)
			repo.profiles[userID] = profile

			e := NewEvaluator(repo, 0.10, logger.Get())
			a, err := e.Assess(context.Background(), userID, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, a.RiskScore)
			assert.Equal(t, tt.wantScore < 70, a.Approved)
		})
	}
}

func TestAssessBlockedAtThreshold(t *testing.T) {
	repo := newMockProfileRepo()
	userID := uuid.New()
	profile := testProfile(userID)
	profile.ConsecutiveLosses = 4 // 30 + 20 + 20 = 70, exactly at threshold
	repo.profiles[userID] = profile

	e := NewEvaluator(repo, 0.10, logger.Get())
	a, err := e.Assess(context.Background(), userID, candidate(200, 1000))
	require.NoError(t, err)
	assert.False(t, a.Approved, "score of exactly 70 is blocked")
	assert.Equal(t, 70.0, a.RiskScore)
	assert.NotEmpty(t, a.Reason)
}

func TestAssessMissingProfileHardRejects(t *testing.T) {
	e := NewEvaluator(newMockProfileRepo(), 0.10, logger.Get())

	a, err := e.Assess(context.Background(), uuid.New(), candidate(50, 1000))
	assert.True(t, errors.Is(err, errors.ErrRiskProfileNotFound))
	assert.False(t, a.Approved)
	assert.Equal(t, 100.0, a.RiskScore)
	assert.Equal(t, "profile not found", a.Reason)
}

func TestAssessInactiveProfileHardRejects(t *testing.T) {
	repo := newMockProfileRepo()
	userID := uuid.New()
	profile := testProfile(userID)
	profile.IsActive = false
	repo.profiles[userID] = profile

	e := NewEvaluator(repo, 0.10, logger.Get())
	a, err := e.Assess(context.Background(), userID, candidate(50, 1000))
	assert.True(t, errors.Is(err, errors.ErrRiskProfileNotFound))
	assert.False(t, a.Approved)
}

func TestAssessZeroBalanceCountsAsLargeNotional(t *testing.T) {
	repo := newMockProfileRepo()
	userID := uuid.New()
	repo.profiles[userID] = testProfile(userID)

	e := NewEvaluator(repo, 0.10, logger.Get())
	a, err := e.Assess(context.Background(), userID, candidate(50, 0))
	require.NoError(t, err)
	assert.Equal(t, 50.0, a.RiskScore)
}
