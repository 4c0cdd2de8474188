package confidence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

func uniform(v float64) Factors {
	return Factors{Freshness: v, HealthChecks: v, DataQuality: v, Coverage: v, Integrity: v}
}

func TestScoreWeightedSum(t *testing.T) {
	f := Factors{Freshness: 90, HealthChecks: 80, DataQuality: 70, Coverage: 60, Integrity: 50}
	report := Score(f)

	// .30*90 + .25*80 + .20*70 + .15*60 + .10*50 = 75.0
	assert.InDelta(t, 75.0, report.Score, 0.001)
	assert.Equal(t, core.ConfidenceLevelMedium, report.Level)
	assert.True(t, report.CanProceed)

	var sum float64
	for _, factor := range report.Factors {
		sum += factor.Score * factor.Weight
	}
	assert.InDelta(t, report.Score, sum, 0.05)
}

func TestBandBoundaries(t *testing.T) {
	tests := []struct {
		score      float64
		level      core.ConfidenceLevel
		canProceed bool
	}{
		{80, core.ConfidenceLevelHigh, true},
		{79, core.ConfidenceLevelMedium, true},
		{60, core.ConfidenceLevelMedium, true},
		{59, core.ConfidenceLevelLow, false},
		{40, core.ConfidenceLevelLow, false},
		{39, core.ConfidenceLevelCritical, false},
	}
	for _, tt := range tests {
		report := Score(uniform(tt.score))
		assert.InDelta(t, tt.score, report.Score, 0.001)
		assert.Equal(t, tt.level, report.Level, "score %v", tt.score)
		assert.Equal(t, tt.canProceed, report.CanProceed, "score %v", tt.score)
		assert.Equal(t, tt.level, Band(tt.score))
	}
}

func TestScoreClampsFactors(t *testing.T) {
	report := Score(Factors{Freshness: 150, HealthChecks: -20, DataQuality: 100, Coverage: 100, Integrity: 100})

	for _, factor := range report.Factors {
		assert.GreaterOrEqual(t, factor.Score, 0.0)
		assert.LessOrEqual(t, factor.Score, 100.0)
	}
}

func TestScoreCollectsBlockingAndWarnings(t *testing.T) {
	report := Score(Factors{Freshness: 30, HealthChecks: 65, DataQuality: 90, Coverage: 90, Integrity: 90})

	require.Len(t, report.BlockingIssues, 1)
	assert.Contains(t, report.BlockingIssues[0], "Data Freshness")
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "Health Checks")
}

func TestAssessDataCheckErrorIsCritical(t *testing.T) {
	gate := NewGate(StaticCheck{Err: errors.New("views unreachable")})

	report := gate.Assess(context.Background(), "2025-01-01", "2025-03-31")

	assert.Equal(t, core.ConfidenceLevelCritical, report.Level)
	assert.False(t, report.CanProceed)
	assert.Zero(t, report.Score)
	require.Len(t, report.BlockingIssues, 1)
	assert.Contains(t, report.BlockingIssues[0], "views unreachable")
}

func TestAssessHappyPath(t *testing.T) {
	gate := NewGate(StaticCheck{Factors: uniform(95)})

	report := gate.Assess(context.Background(), "2025-01-01", "2025-03-31")

	assert.Equal(t, core.ConfidenceLevelHigh, report.Level)
	assert.True(t, report.CanProceed)
	assert.Empty(t, report.BlockingIssues)
}
