package stage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/retailops/boardflow/core"
)

// Snapshot is the aggregated business picture the rule-based role stages
// analyze. It is the Go-side stand-in for the per-role warehouse views; a
// MetricsSource produces it from whatever backend it fronts.
type Snapshot struct {
	PeriodStart string `yaml:"period_start"`
	PeriodEnd   string `yaml:"period_end"`

	// Finance.
	NetRevenue      float64 `yaml:"net_revenue"`
	GrossProfit     float64 `yaml:"gross_profit"`
	COGS            float64 `yaml:"cogs"`
	DiscountRatePct float64 `yaml:"discount_rate_pct"`
	ReturnsPct      float64 `yaml:"returns_pct"`

	// Demand.
	UnitsSold        float64 `yaml:"units_sold"`
	Transactions     float64 `yaml:"transactions"`
	AvgBasketValue   float64 `yaml:"avg_basket_value"`
	RepeatRatePct    float64 `yaml:"repeat_rate_pct"`
	ActivePromotions int     `yaml:"active_promotions"`

	// Operations.
	InventoryDays float64 `yaml:"inventory_days"`

	// Data platform.
	DataHealthScore   float64 `yaml:"data_health_score"`
	DataFreshnessDays float64 `yaml:"data_freshness_days"`
	SKUCoveragePct    float64 `yaml:"sku_coverage_pct"`

	// Period-over-period direction per metric family.
	MarginTrend  core.Trend `yaml:"margin_trend"`
	RevenueTrend core.Trend `yaml:"revenue_trend"`
	BasketTrend  core.Trend `yaml:"basket_trend"`

	// Weakest category by margin, for focus areas.
	LowMarginCategory    string  `yaml:"low_margin_category"`
	LowMarginCategoryPct float64 `yaml:"low_margin_category_pct"`
}

// GrossMarginPct derives the headline margin from profit and revenue.
func (s *Snapshot) GrossMarginPct() float64 {
	if s.NetRevenue <= 0 {
		return 0
	}
	return s.GrossProfit / s.NetRevenue * 100
}

// MetricsSource supplies the snapshot for an analysis period.
type MetricsSource interface {
	Snapshot(ctx context.Context, periodStart, periodEnd string) (*Snapshot, error)
}

// StaticSource serves a fixed snapshot, for fixtures and tests.
type StaticSource struct {
	Data *Snapshot
	Err  error
}

// Snapshot implements MetricsSource.
func (s *StaticSource) Snapshot(context.Context, string, string) (*Snapshot, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Data, nil
}

// LoadSnapshot reads a snapshot fixture from a YAML file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot fixture: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot fixture %s: %w", path, err)
	}
	if snap.MarginTrend == "" {
		snap.MarginTrend = core.TrendFlat
	}
	if snap.RevenueTrend == "" {
		snap.RevenueTrend = core.TrendFlat
	}
	if snap.BasketTrend == "" {
		snap.BasketTrend = core.TrendFlat
	}
	return &snap, nil
}
