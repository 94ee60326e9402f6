package vehicle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreStaysClamped(t *testing.T) {
	policy := DefaultScorePolicy()

	cases := []struct {
		name string
		debt DebtSummary
		hold bool
	}{
		{name: "clean vehicle"},
		{name: "crushing debt", debt: DebtSummary{TotalDebt: 1e9, TotalFines: 1e6, TotalInterest: 1e6}, hold: true},
		{name: "heavy payer", debt: DebtSummary{TotalPaid: 1e7, PaymentsLastYear: 5000, TotalPrescriptions: -1e6}},
		{name: "mixed extremes", debt: DebtSummary{TotalDebt: 50000, TotalPaid: 50000, TotalPrescriptions: -50000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := policy.score(&tc.debt, tc.hold)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 100)
		})
	}
}

func TestScoreMonotonicInDebt(t *testing.T) {
	policy := DefaultScorePolicy()

	prev := 101
	for _, debt := range []float64{0, 50, 200, 700, 1500, 5000} {
		d := DebtSummary{TotalDebt: debt}
		score := policy.score(&d, false)
		assert.LessOrEqual(t, score, prev, "score must not rise as debt grows (debt=%v)", debt)
		prev = score
	}
}

func TestOverdueInstallmentPenalties(t *testing.T) {
	policy := DefaultScorePolicy()

	cases := []struct {
		overdue float64
		want    int
	}{
		{overdue: 0, want: 100},
		{overdue: 40, want: 90},
		{overdue: 80, want: 80},
		{overdue: 250, want: 75},
	}

	for _, tc := range cases {
		d := DebtSummary{OverdueInstallments: tc.overdue}
		assert.Equal(t, tc.want, policy.score(&d, false), "overdue %.0f", tc.overdue)
	}
}

func TestRecommendationBuckets(t *testing.T) {
	policy := DefaultScorePolicy()

	assert.Equal(t, policy.NoActionText, policy.recommendation(0))
	assert.Equal(t, policy.NoActionText, policy.recommendation(20))
	assert.Equal(t, policy.ReviewText, policy.recommendation(21))
	assert.Equal(t, policy.ReviewText, policy.recommendation(60))
	assert.Equal(t, policy.DoNotProceedText, policy.recommendation(61))
	assert.Equal(t, policy.DoNotProceedText, policy.recommendation(100))
}

func TestRiskLevels(t *testing.T) {
	policy := DefaultScorePolicy()

	assert.Equal(t, RiskVeryLow, policy.riskLevel(100))
	assert.Equal(t, RiskVeryLow, policy.riskLevel(95))
	assert.Equal(t, RiskLow, policy.riskLevel(94))
	assert.Equal(t, RiskModerate, policy.riskLevel(79))
	assert.Equal(t, RiskHigh, policy.riskLevel(59))
	assert.Equal(t, RiskCritical, policy.riskLevel(39))
}

func TestEstimateValue(t *testing.T) {
	policy := DefaultScorePolicy()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	t.Run("new vehicle keeps the base value", func(t *testing.T) {
		year := 2025
		assert.InDelta(t, 15000, policy.estimateValue(&year, 0, now), 0.01)
	})

	t.Run("old vehicle floors out", func(t *testing.T) {
		year := 1960
		assert.InDelta(t, 1500, policy.estimateValue(&year, 0, now), 0.01, "depreciation factor bottoms at 10%")
	})

	t.Run("debt discounts the estimate", func(t *testing.T) {
		year := 2025
		assert.InDelta(t, 13500, policy.estimateValue(&year, 300, now), 0.01)
	})

	t.Run("unknown year yields no estimate", func(t *testing.T) {
		assert.Zero(t, policy.estimateValue(nil, 0, now))
	})
}

func TestRegistrationStatus(t *testing.T) {
	policy := DefaultScorePolicy()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	status, days := policy.registrationStatus("20-12-2025 00:00", now)
	require.NotNil(t, days)
	assert.Equal(t, RegistrationValid, status)

	status, days = policy.registrationStatus("25-06-2025", now)
	require.NotNil(t, days)
	assert.Equal(t, RegistrationExpiringSoon, status)
	assert.Equal(t, 10, *days)

	status, days = policy.registrationStatus("01-01-2024", now)
	require.NotNil(t, days)
	assert.Equal(t, RegistrationExpired, status)
	assert.Negative(t, *days)

	status, days = policy.registrationStatus("", now)
	assert.Equal(t, RegistrationIndeterminate, status)
	assert.Nil(t, days)
}
