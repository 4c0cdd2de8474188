package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailops/boardflow/core"
)

func healthySnapshot() *Snapshot {
	return &Snapshot{
		PeriodStart:       "2025-01-01",
		PeriodEnd:         "2025-03-31",
		NetRevenue:        1000000,
		GrossProfit:       230000,
		COGS:              770000,
		DiscountRatePct:   4.0,
		UnitsSold:         40000,
		Transactions:      8000,
		AvgBasketValue:    125,
		RepeatRatePct:     55,
		ActivePromotions:  3,
		InventoryDays:     50,
		DataHealthScore:   95,
		DataFreshnessDays: 1,
		SKUCoveragePct:    98,
		MarginTrend:       core.TrendFlat,
		RevenueTrend:      core.TrendUp,
		BasketTrend:       core.TrendUp,
	}
}

func ctxFor(snap *Snapshot) *core.StageContext {
	return &core.StageContext{
		SessionID:   "s-1",
		PeriodStart: snap.PeriodStart,
		PeriodEnd:   snap.PeriodEnd,
		Successors:  []string{"Evaluator"},
	}
}

func TestCFOHealthyQuarter(t *testing.T) {
	snap := healthySnapshot()
	res, err := NewCFO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)

	require.Len(t, res.KPIs, 4)
	assert.Equal(t, "Gross Margin %", res.KPIs[0].Name)
	assert.InDelta(t, 23.0, res.KPIs[0].Value, 0.001)
	assert.Equal(t, core.ConfidenceHigh, res.Confidence)
	assert.False(t, res.Handoff.HasFlag(core.FlagMarginBelowFloor))
	assert.Contains(t, res.Risks[0], "within acceptable ranges")
}

func TestCFOFlagsMarginBelowFloor(t *testing.T) {
	snap := healthySnapshot()
	snap.GrossProfit = 160000 // 16% margin

	res, err := NewCFO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)

	assert.True(t, res.Handoff.HasFlag(core.FlagMarginBelowFloor))
	assert.Equal(t, core.SeverityCritical, res.Handoff.Priority)
	assert.NotEmpty(t, res.Recommendations)
}

func TestCFOFlagsExcessiveDiscount(t *testing.T) {
	snap := healthySnapshot()
	snap.DiscountRatePct = 14

	res, err := NewCFO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)
	assert.True(t, res.Handoff.HasFlag(core.FlagDiscountExcessive))
}

func TestCMOFlagsChurnRisk(t *testing.T) {
	snap := healthySnapshot()
	snap.RepeatRatePct = 25

	res, err := NewCMO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)

	assert.True(t, res.Handoff.HasFlag(core.FlagCustomerChurnRisk))
	// Low retention also drives a loyalty recommendation.
	var actions []string
	for _, rec := range res.Recommendations {
		actions = append(actions, rec.Action)
	}
	assert.Contains(t, actions, "Launch loyalty program to improve customer retention")
}

func TestCMORespectsUpstreamMarginPressure(t *testing.T) {
	snap := healthySnapshot()
	sc := ctxFor(snap)
	sc.Handoffs = []*core.Handoff{{From: "CFO", To: "CMO", Flags: []core.RiskFlag{core.FlagMarginBelowFloor}}}

	res, err := NewCMO(&StaticSource{Data: snap}).Analyze(context.Background(), sc)
	require.NoError(t, err)

	var actions []string
	for _, rec := range res.Recommendations {
		actions = append(actions, rec.Action)
	}
	assert.Contains(t, actions, "Shift promotional mix toward full-price bundles")
	assert.NotContains(t, actions, "Implement cross-sell recommendations at checkout")
}

func TestCIOFlagsStaleData(t *testing.T) {
	snap := healthySnapshot()
	snap.DataFreshnessDays = 12

	res, err := NewCIO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)

	assert.True(t, res.Handoff.HasFlag(core.FlagDataStale))
	assert.Equal(t, core.SeverityHigh, res.Handoff.Priority)
}

func TestCIOConfidenceTracksHealth(t *testing.T) {
	snap := healthySnapshot()
	snap.DataHealthScore = 75

	res, err := NewCIO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)
	assert.Equal(t, core.ConfidenceMedium, res.Confidence)
}

func TestCEOFlagsInventoryExtremes(t *testing.T) {
	snap := healthySnapshot()
	snap.InventoryDays = 110

	res, err := NewCEO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)
	assert.True(t, res.Handoff.HasFlag(core.FlagInventoryHigh))

	snap.InventoryDays = 20
	res, err = NewCEO(&StaticSource{Data: snap}).Analyze(context.Background(), ctxFor(snap))
	require.NoError(t, err)
	assert.True(t, res.Handoff.HasFlag(core.FlagInventoryLow))
}

func TestRoleStagesCoverAllNodes(t *testing.T) {
	stages := RoleStages(&StaticSource{Data: healthySnapshot()})

	require.Len(t, stages, 4)
	for _, name := range []string{RoleCEO, RoleCFO, RoleCMO, RoleCIO} {
		require.Contains(t, stages, name)
		assert.Equal(t, name, stages[name].Name())
	}
}

func TestSourceErrorFailsStage(t *testing.T) {
	src := &StaticSource{Err: errors.New("warehouse down")}

	_, err := NewCFO(src).Analyze(context.Background(), &core.StageContext{})
	assert.ErrorContains(t, err, "warehouse down")
}
