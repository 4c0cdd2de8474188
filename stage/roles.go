package stage

import (
	"context"
	"fmt"
	"math"

	"github.com/retailops/boardflow/core"
)

// Role stage names match the flow node names they run under.
const (
	RoleCEO = "CEO"
	RoleCFO = "CFO"
	RoleCMO = "CMO"
	RoleCIO = "CIO"
)

// RoleStages returns the built-in rule-based stage set over one source,
// keyed by node name.
func RoleStages(source MetricsSource) map[string]core.Stage {
	return map[string]core.Stage{
		RoleCEO: NewCEO(source),
		RoleCFO: NewCFO(source),
		RoleCMO: NewCMO(source),
		RoleCIO: NewCIO(source),
	}
}

// CEO frames the strategic picture: headline revenue, margin, volume and
// inventory position.
type CEO struct {
	source MetricsSource
}

// NewCEO constructs the CEO stage.
func NewCEO(source MetricsSource) *CEO { return &CEO{source: source} }

// Name implements core.Stage.
func (s *CEO) Name() string { return RoleCEO }

// Analyze implements core.Stage.
func (s *CEO) Analyze(ctx context.Context, sc *core.StageContext) (*core.StageResult, error) {
	snap, err := s.source.Snapshot(ctx, sc.PeriodStart, sc.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("ceo snapshot: %w", err)
	}
	window := window(sc)
	margin := snap.GrossMarginPct()

	res := &core.StageResult{
		KPIs: []core.KPI{
			{Name: "Net Revenue", Value: round2(snap.NetRevenue), Unit: "$", Trend: snap.RevenueTrend, Window: window, SourceRef: "ceo_views.board_summary"},
			{Name: "Gross Margin %", Value: round1(margin), Unit: "%", Trend: snap.MarginTrend, Window: window, SourceRef: "ceo_views.margin_summary"},
			{Name: "Units Sold", Value: snap.UnitsSold, Unit: "units", Trend: snap.RevenueTrend, Window: window, SourceRef: "ceo_views.board_summary"},
			{Name: "Days of Inventory", Value: round1(snap.InventoryDays), Unit: "days", Trend: core.TrendFlat, Window: "Current", SourceRef: "ceo_views.inventory_days_summary"},
		},
		Evidence: []core.EvidenceRef{
			{View: "ceo_views.board_summary", Filters: window},
			{View: "ceo_views.margin_summary", Filters: window},
			{View: "ceo_views.inventory_days_summary", Filters: "current"},
		},
		Confidence: core.ConfidenceHigh,
		Handoff:    &core.Handoff{Priority: core.SeverityMedium, Reason: "Strategic framing for functional deep dives"},
	}

	res.Insights = append(res.Insights,
		fmt.Sprintf("Net revenue of $%.0f at %.1f%% gross margin over %s.", snap.NetRevenue, margin, window))
	res.Handoff.AddSignal("Gross Margin %", round1(margin), snap.MarginTrend, severityForMargin(margin), "headline margin")
	res.Handoff.AddSignal("Net Revenue", round2(snap.NetRevenue), snap.RevenueTrend, core.SeverityLow, "headline revenue")

	if snap.RevenueTrend == core.TrendDown {
		res.Risks = append(res.Risks, "Revenue trending down versus prior period.")
		res.Handoff.AddFlag(core.FlagRevenueDeclining)
		res.Handoff.Priority = core.SeverityHigh
	}
	if snap.InventoryDays > 90 {
		res.Risks = append(res.Risks, fmt.Sprintf("Inventory at %.1f days exceeds the 90-day ceiling.", snap.InventoryDays))
		res.Handoff.AddFlag(core.FlagInventoryHigh)
		res.Handoff.FocusAreas = append(res.Handoff.FocusAreas,
			core.FocusArea{Metric: "Days of Inventory", Value: snap.InventoryDays, Threshold: 90})
	}
	if snap.InventoryDays > 0 && snap.InventoryDays < 30 {
		res.Risks = append(res.Risks, fmt.Sprintf("Inventory at %.1f days risks stockouts below the 30-day floor.", snap.InventoryDays))
		res.Handoff.AddFlag(core.FlagInventoryLow)
		res.Handoff.Priority = core.SeverityHigh
	}
	if margin < 18 {
		res.Handoff.AddFlag(core.FlagMarginBelowFloor)
		res.Handoff.Priority = core.SeverityHigh
	}

	res.Recommendations = append(res.Recommendations, core.Recommendation{
		Action:   "Hold functional reviews against the quarterly plan",
		Impact:   fmt.Sprintf("Keep margin above 18%% while defending $%.0f revenue run rate", snap.NetRevenue),
		Priority: "Medium",
	})
	if snap.RevenueTrend == core.TrendDown {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Commission demand recovery plan across top categories",
			Impact:   "Reverse the revenue decline within one quarter",
			Priority: "High",
		})
	}
	return res, nil
}

// CFO covers profitability: margin, revenue, cost of goods and discounting.
type CFO struct {
	source MetricsSource
}

// NewCFO constructs the CFO stage.
func NewCFO(source MetricsSource) *CFO { return &CFO{source: source} }

// Name implements core.Stage.
func (s *CFO) Name() string { return RoleCFO }

// Analyze implements core.Stage.
func (s *CFO) Analyze(ctx context.Context, sc *core.StageContext) (*core.StageResult, error) {
	snap, err := s.source.Snapshot(ctx, sc.PeriodStart, sc.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("cfo snapshot: %w", err)
	}
	window := window(sc)
	margin := snap.GrossMarginPct()

	res := &core.StageResult{
		KPIs: []core.KPI{
			{Name: "Gross Margin %", Value: round1(margin), Unit: "%", Trend: snap.MarginTrend, Window: window, SourceRef: "cfo_views.daily_pnl"},
			{Name: "Net Revenue", Value: round2(snap.NetRevenue), Unit: "$", Trend: snap.RevenueTrend, Window: window, SourceRef: "cfo_views.daily_pnl"},
			{Name: "Total COGS", Value: round2(snap.COGS), Unit: "$", Trend: snap.RevenueTrend, Window: window, SourceRef: "cfo_views.daily_pnl"},
			{Name: "Avg Discount Rate", Value: round1(snap.DiscountRatePct), Unit: "%", Trend: core.TrendFlat, Window: window, SourceRef: "cfo_views.discount_analysis"},
		},
		Evidence: []core.EvidenceRef{
			{View: "cfo_views.daily_pnl", Filters: window},
			{View: "cfo_views.discount_analysis", Filters: window},
		},
		Handoff: &core.Handoff{Reason: "Financial position for demand and operations review"},
	}
	if snap.NetRevenue > 0 {
		res.Confidence = core.ConfidenceHigh
	} else {
		res.Confidence = core.ConfidenceLow
	}

	res.Insights = append(res.Insights,
		fmt.Sprintf("Gross margin at %.1f%% with net revenue of $%.0f.", margin, snap.NetRevenue))
	if snap.DiscountRatePct > 5 {
		res.Insights = append(res.Insights, fmt.Sprintf("Discount rate of %.1f%% impacting margins.", snap.DiscountRatePct))
	} else {
		res.Insights = append(res.Insights, fmt.Sprintf("Discount rate controlled at %.1f%%.", snap.DiscountRatePct))
	}
	if snap.NetRevenue > 0 {
		res.Insights = append(res.Insights, fmt.Sprintf("COGS represents %.1f%% of net revenue.", snap.COGS/snap.NetRevenue*100))
	}

	res.Handoff.AddSignal("Gross Margin %", round1(margin), snap.MarginTrend, severityForMargin(margin), "P&L margin")
	res.Handoff.AddSignal("Avg Discount Rate", round1(snap.DiscountRatePct), core.TrendFlat, severityForDiscount(snap.DiscountRatePct), "blended discount depth")

	switch {
	case margin < 18:
		res.Risks = append(res.Risks, fmt.Sprintf("Margin at %.1f%% is below the 18%% floor. Immediate review needed.", margin))
		res.Handoff.AddFlag(core.FlagMarginBelowFloor)
		res.Handoff.Priority = core.SeverityCritical
		if margin < 15 {
			res.Handoff.AddFlag(core.FlagMarginCritical)
		}
	case margin < 20:
		res.Risks = append(res.Risks, fmt.Sprintf("Margin at %.1f%% is below the 20%% target threshold.", margin))
		res.Handoff.Priority = core.SeverityHigh
	default:
		res.Handoff.Priority = core.SeverityMedium
	}
	if snap.DiscountRatePct > 12 {
		res.Risks = append(res.Risks, fmt.Sprintf("Discount rate %.1f%% breaches the 12%% cap.", snap.DiscountRatePct))
		res.Handoff.AddFlag(core.FlagDiscountExcessive)
	}
	if snap.ReturnsPct > 3 {
		res.Risks = append(res.Risks, fmt.Sprintf("Returns at %.1f%% of revenue, above the 3%% threshold.", snap.ReturnsPct))
	}
	if len(res.Risks) == 0 {
		res.Risks = append(res.Risks, "Financial metrics within acceptable ranges.")
	}

	if snap.LowMarginCategory != "" && snap.LowMarginCategoryPct < 15 {
		res.Handoff.FocusAreas = append(res.Handoff.FocusAreas, core.FocusArea{
			Category:  snap.LowMarginCategory,
			Metric:    "Gross Margin %",
			Value:     snap.LowMarginCategoryPct,
			Threshold: 18,
		})
	}

	if margin < 25 {
		prio := "Medium"
		if margin < 20 {
			prio = "High"
		}
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Review category-level pricing to improve overall margin",
			Impact:   fmt.Sprintf("Target margin increase from %.1f%% toward 25%%", margin),
			Priority: prio,
		})
	}
	if snap.DiscountRatePct > 5 {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Implement discount caps on low-margin categories",
			Impact:   fmt.Sprintf("Reduce discount rate from %.1f%% to protect margins", snap.DiscountRatePct),
			Priority: "High",
		})
	}
	return res, nil
}

// CMO covers demand: volume, basket economics, promotions and retention.
type CMO struct {
	source MetricsSource
}

// NewCMO constructs the CMO stage.
func NewCMO(source MetricsSource) *CMO { return &CMO{source: source} }

// Name implements core.Stage.
func (s *CMO) Name() string { return RoleCMO }

// Analyze implements core.Stage.
func (s *CMO) Analyze(ctx context.Context, sc *core.StageContext) (*core.StageResult, error) {
	snap, err := s.source.Snapshot(ctx, sc.PeriodStart, sc.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("cmo snapshot: %w", err)
	}
	window := window(sc)

	res := &core.StageResult{
		KPIs: []core.KPI{
			{Name: "Units Sold", Value: snap.UnitsSold, Unit: "units", Trend: snap.RevenueTrend, Window: window, SourceRef: "cmo_views.sales_demand_category"},
			{Name: "Avg Basket Value", Value: round2(snap.AvgBasketValue), Unit: "$", Trend: snap.BasketTrend, Window: window, SourceRef: "cmo_views.basket_metrics"},
			{Name: "Active Promotions", Value: float64(snap.ActivePromotions), Unit: "count", Trend: core.TrendFlat, Window: window, SourceRef: "cmo_views.promo_coverage"},
			{Name: "Repeat Customer Rate", Value: round1(snap.RepeatRatePct), Unit: "%", Trend: core.TrendFlat, Window: "All time", SourceRef: "cmo_views.repeat_rate"},
		},
		Evidence: []core.EvidenceRef{
			{View: "cmo_views.sales_demand_category", Filters: window},
			{View: "cmo_views.basket_metrics", Filters: window},
			{View: "cmo_views.repeat_rate", Filters: "all time"},
		},
		Handoff: &core.Handoff{Reason: "Demand and retention picture", Priority: core.SeverityMedium},
	}
	if snap.UnitsSold > 0 {
		res.Confidence = core.ConfidenceHigh
	} else {
		res.Confidence = core.ConfidenceLow
	}

	res.Insights = append(res.Insights,
		fmt.Sprintf("Sold %.0f units across %.0f transactions at $%.2f average basket.", snap.UnitsSold, snap.Transactions, snap.AvgBasketValue))
	res.Handoff.AddSignal("Units Sold", snap.UnitsSold, snap.RevenueTrend, core.SeverityLow, "demand volume")
	res.Handoff.AddSignal("Repeat Customer Rate", round1(snap.RepeatRatePct), core.TrendFlat, severityForRepeat(snap.RepeatRatePct), "retention")

	// Incoming finance flags reshape the marketing stance.
	marginPressure := hasUpstreamFlag(sc, core.FlagMarginBelowFloor) || hasUpstreamFlag(sc, core.FlagDiscountExcessive)
	if marginPressure {
		res.Insights = append(res.Insights, "Upstream margin pressure constrains promotional depth this period.")
	}

	oneTime := 100 - snap.RepeatRatePct
	if oneTime > 60 {
		res.Risks = append(res.Risks, fmt.Sprintf("High one-time customer rate: %.1f%% don't return.", oneTime))
		res.Handoff.AddFlag(core.FlagCustomerChurnRisk)
		res.Handoff.Priority = core.SeverityHigh
	}
	if snap.RevenueTrend == core.TrendDown {
		res.Risks = append(res.Risks, "Demand trending down versus prior period.")
		res.Handoff.AddFlag(core.FlagRevenueDeclining)
	}
	if snap.ActivePromotions > 5 && snap.DiscountRatePct > 10 && snap.BasketTrend != core.TrendUp {
		res.Risks = append(res.Risks, fmt.Sprintf("%d concurrent promotions at %.1f%% discount without basket lift suggests cannibalization.", snap.ActivePromotions, snap.DiscountRatePct))
		res.Handoff.AddFlag(core.FlagPromoCannibalization)
	}
	if len(res.Risks) == 0 {
		res.Risks = append(res.Risks, "Sales metrics within expected ranges.")
	}

	if !marginPressure {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Implement cross-sell recommendations at checkout",
			Impact:   fmt.Sprintf("Target basket increase from $%.2f to $%.2f", snap.AvgBasketValue, snap.AvgBasketValue*1.1),
			Priority: "High",
		})
	} else {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Shift promotional mix toward full-price bundles",
			Impact:   "Defend traffic without deepening discount exposure",
			Priority: "High",
		})
	}
	if snap.RepeatRatePct < 50 {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Launch loyalty program to improve customer retention",
			Impact:   fmt.Sprintf("Target repeat rate improvement from %.1f%% to 50%%", snap.RepeatRatePct),
			Priority: "High",
		})
	}
	return res, nil
}

// CIO covers the data platform: health, freshness and coverage.
type CIO struct {
	source MetricsSource
}

// NewCIO constructs the CIO stage.
func NewCIO(source MetricsSource) *CIO { return &CIO{source: source} }

// Name implements core.Stage.
func (s *CIO) Name() string { return RoleCIO }

// Analyze implements core.Stage.
func (s *CIO) Analyze(ctx context.Context, sc *core.StageContext) (*core.StageResult, error) {
	snap, err := s.source.Snapshot(ctx, sc.PeriodStart, sc.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("cio snapshot: %w", err)
	}

	healthTrend := core.TrendFlat
	if snap.DataHealthScore >= 90 {
		healthTrend = core.TrendUp
	}
	freshTrend := core.TrendUp
	if snap.DataFreshnessDays > 7 {
		freshTrend = core.TrendDown
	}

	res := &core.StageResult{
		KPIs: []core.KPI{
			{Name: "Data Health Score", Value: round1(snap.DataHealthScore), Unit: "%", Trend: healthTrend, Window: "Current", SourceRef: "cio_views.health_check_status"},
			{Name: "Data Freshness", Value: snap.DataFreshnessDays, Unit: "days", Trend: freshTrend, Window: "Current", SourceRef: "cio_views.data_freshness"},
			{Name: "SKU Coverage", Value: round1(snap.SKUCoveragePct), Unit: "%", Trend: core.TrendFlat, Window: "Current", SourceRef: "cio_views.inventory_coverage"},
		},
		Evidence: []core.EvidenceRef{
			{View: "cio_views.health_check_status", Filters: "latest checks"},
			{View: "cio_views.data_freshness", Filters: "current"},
			{View: "cio_views.inventory_coverage", Filters: "current"},
		},
		Handoff: &core.Handoff{Reason: "Data reliability context for downstream figures", Priority: core.SeverityLow},
	}

	switch {
	case snap.DataHealthScore >= 90:
		res.Confidence = core.ConfidenceHigh
	case snap.DataHealthScore >= 70:
		res.Confidence = core.ConfidenceMedium
	default:
		res.Confidence = core.ConfidenceLow
	}

	res.Insights = append(res.Insights,
		fmt.Sprintf("Platform health at %.1f%% with %.0f-day data freshness.", snap.DataHealthScore, snap.DataFreshnessDays))
	res.Handoff.AddSignal("Data Health Score", round1(snap.DataHealthScore), healthTrend, core.SeverityLow, "platform health")

	if snap.DataFreshnessDays > 7 {
		res.Risks = append(res.Risks, fmt.Sprintf("Data %.0f days stale, beyond the 7-day freshness target.", snap.DataFreshnessDays))
		res.Handoff.AddFlag(core.FlagDataStale)
		res.Handoff.Priority = core.SeverityHigh
	}
	if snap.DataHealthScore < 70 {
		res.Risks = append(res.Risks, fmt.Sprintf("Data health score %.1f%% indicates failing quality checks.", snap.DataHealthScore))
		res.Handoff.AddFlag(core.FlagDataQualityIssue)
		res.Handoff.Priority = core.SeverityHigh
	}
	if len(res.Risks) == 0 {
		res.Risks = append(res.Risks, "Data platform operating within tolerances.")
	}

	if snap.SKUCoveragePct < 95 {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Backfill inventory records for uncovered SKUs",
			Impact:   fmt.Sprintf("Raise SKU coverage from %.1f%% to 95%%", snap.SKUCoveragePct),
			Priority: "Medium",
		})
	}
	if snap.DataFreshnessDays > 7 {
		res.Recommendations = append(res.Recommendations, core.Recommendation{
			Action:   "Re-run stalled ingestion pipelines",
			Impact:   "Restore same-week data freshness before decisions are taken",
			Priority: "High",
		})
	}
	return res, nil
}

func window(sc *core.StageContext) string {
	if sc.PeriodStart == "" || sc.PeriodEnd == "" {
		return "Current"
	}
	return sc.PeriodStart + " to " + sc.PeriodEnd
}

func hasUpstreamFlag(sc *core.StageContext, flag core.RiskFlag) bool {
	for _, h := range sc.Handoffs {
		if h.HasFlag(flag) {
			return true
		}
	}
	return false
}

func severityForMargin(margin float64) core.Severity {
	switch {
	case margin < 15:
		return core.SeverityCritical
	case margin < 18:
		return core.SeverityHigh
	case margin < 20:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

func severityForDiscount(rate float64) core.Severity {
	switch {
	case rate > 12:
		return core.SeverityHigh
	case rate > 5:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

func severityForRepeat(rate float64) core.Severity {
	switch {
	case rate < 30:
		return core.SeverityHigh
	case rate < 50:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
