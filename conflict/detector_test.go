package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

func handoff(from string, signals ...core.Signal) *core.Handoff {
	return &core.Handoff{From: from, To: "Evaluator", Signals: signals, Timestamp: time.Now().UTC()}
}

func TestDetectContradiction(t *testing.T) {
	handoffs := []*core.Handoff{
		handoff("CFO", core.Signal{Metric: "Avg Discount Rate", Value: 14, Direction: core.TrendDown}),
		handoff("CMO", core.Signal{Metric: "Avg Discount Rate", Value: 14, Direction: core.TrendUp}),
	}

	conflicts := NewDetector().Detect(handoffs, nil, &core.ConflictIDGen{})

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, core.ConflictContradiction, c.Kind)
	assert.Equal(t, core.SeverityHigh, c.Severity)
	assert.Equal(t, []string{"CFO", "CMO"}, c.Between)
	assert.Contains(t, c.Issue, "Avg Discount Rate")
}

func TestNoContradictionOnAlignedSignals(t *testing.T) {
	handoffs := []*core.Handoff{
		handoff("CFO", core.Signal{Metric: "Gross Margin %", Direction: core.TrendDown}),
		handoff("CMO", core.Signal{Metric: "Gross Margin %", Direction: core.TrendDown}),
		handoff("CIO", core.Signal{Metric: "Data Health Score", Direction: core.TrendFlat}),
	}

	conflicts := NewDetector().Detect(handoffs, nil, &core.ConflictIDGen{})
	assert.Empty(t, conflicts)
}

func TestDetectPriorityMismatch(t *testing.T) {
	a := handoff("CFO")
	a.Priority = core.SeverityCritical
	b := handoff("CMO")
	b.Priority = core.SeverityLow

	conflicts := NewDetector().Detect([]*core.Handoff{a, b}, nil, &core.ConflictIDGen{})

	require.Len(t, conflicts, 1)
	assert.Equal(t, core.ConflictPriorityMismatch, conflicts[0].Kind)
	assert.Equal(t, core.SeverityMedium, conflicts[0].Severity)
}

func TestAdjacentPrioritiesDoNotMismatch(t *testing.T) {
	a := handoff("CFO")
	a.Priority = core.SeverityHigh
	b := handoff("CMO")
	b.Priority = core.SeverityMedium

	conflicts := NewDetector().Detect([]*core.Handoff{a, b}, nil, &core.ConflictIDGen{})
	assert.Empty(t, conflicts)
}

func TestDetectMissingAssumption(t *testing.T) {
	h := handoff("CFO")
	h.FocusAreas = []core.FocusArea{{Metric: "Repeat Customer Rate", Threshold: 50}}

	kpis := map[string][]core.KPI{
		"CFO": {{Name: "Gross Margin %", Value: 21}},
		"CIO": {{Name: "Data Health Score", Value: 95}},
	}

	conflicts := NewDetector().Detect([]*core.Handoff{h}, kpis, &core.ConflictIDGen{})

	require.Len(t, conflicts, 1)
	assert.Equal(t, core.ConflictMissingAssumption, conflicts[0].Kind)
	assert.Equal(t, core.SeverityLow, conflicts[0].Severity)
	assert.Equal(t, []string{"CFO"}, conflicts[0].Between)
}

func TestAssumptionSupportedByOtherStage(t *testing.T) {
	h := handoff("CFO")
	h.FocusAreas = []core.FocusArea{{Metric: "Repeat Customer Rate", Threshold: 50}}

	kpis := map[string][]core.KPI{
		"CMO": {{Name: "Repeat Customer Rate", Value: 44}},
	}

	conflicts := NewDetector().Detect([]*core.Handoff{h}, kpis, &core.ConflictIDGen{})
	assert.Empty(t, conflicts)
}

func TestDetectHorizonMismatch(t *testing.T) {
	kpis := map[string][]core.KPI{
		"CFO": {{Name: "Net Revenue", Value: 100, Window: "2025-01-01 to 2025-03-31"}},
		"CMO": {{Name: "Net Revenue", Value: 90, Window: "2025-02-01 to 2025-03-31"}},
	}

	conflicts := NewDetector().Detect(nil, kpis, &core.ConflictIDGen{})

	require.Len(t, conflicts, 1)
	assert.Equal(t, core.ConflictHorizonMismatch, conflicts[0].Kind)
	assert.Equal(t, core.SeverityMedium, conflicts[0].Severity)
}

func TestDetectIsDeterministic(t *testing.T) {
	build := func() ([]*core.Handoff, map[string][]core.KPI) {
		a := handoff("CMO", core.Signal{Metric: "Avg Discount Rate", Direction: core.TrendUp})
		a.Priority = core.SeverityLow
		b := handoff("CFO", core.Signal{Metric: "Avg Discount Rate", Direction: core.TrendDown})
		b.Priority = core.SeverityCritical
		b.FocusAreas = []core.FocusArea{{Metric: "SKU Coverage", Threshold: 95}}
		kpis := map[string][]core.KPI{
			"CFO": {{Name: "Net Revenue", Window: "Q1"}},
			"CMO": {{Name: "Net Revenue", Window: "Feb-Mar"}},
		}
		return []*core.Handoff{a, b}, kpis
	}

	h1, k1 := build()
	first := NewDetector().Detect(h1, k1, &core.ConflictIDGen{})

	// Same inputs in reversed declaration order.
	h2, k2 := build()
	h2[0], h2[1] = h2[1], h2[0]
	second := NewDetector().Detect(h2, k2, &core.ConflictIDGen{})

	require.Equal(t, len(first), len(second))
	assert.Equal(t, first, second)
}
