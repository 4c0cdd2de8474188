package core

import "strings"

// Trend indicates the direction a metric is moving over its window.
type Trend string

// Trend values.
const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendFlat Trend = "FLAT"
)

// ConfidenceLabel grades how much a stage trusts a produced figure.
type ConfidenceLabel string

// ConfidenceLabel values.
const (
	ConfidenceHigh   ConfidenceLabel = "High"
	ConfidenceMedium ConfidenceLabel = "Medium"
	ConfidenceLow    ConfidenceLabel = "Low"
)

// KPI is a single metric card produced by a stage. Downstream components
// treat KPIs as read-only.
type KPI struct {
	Name       string          `json:"name"`
	Value      float64         `json:"value"`
	Unit       string          `json:"unit"`
	Trend      Trend           `json:"trend"`
	Window     string          `json:"window,omitempty"`
	Definition string          `json:"definition,omitempty"`
	SourceRef  string          `json:"source_ref,omitempty"`
	Confidence ConfidenceLabel `json:"confidence,omitempty"`
}

// Signal is a metric observation passed between stages inside a handoff.
type Signal struct {
	Metric    string   `json:"metric"`
	Value     float64  `json:"value"`
	Direction Trend    `json:"direction"`
	Severity  Severity `json:"severity,omitempty"`
	Context   string   `json:"context,omitempty"`
}

// MetricSet is the flattened view of accumulated KPIs the constraint engine
// and evaluator score against. A nil pointer means the metric has not been
// produced by any completed stage yet.
type MetricSet struct {
	GrossMarginPct  *float64
	NetRevenue      *float64
	InventoryDays   *float64
	DiscountRatePct *float64
	RepeatRatePct   *float64
	DataHealthScore *float64
	UnitsSold       *float64
	Flags           map[RiskFlag]bool
}

// NewMetricSet returns an empty metric set with an initialized flag map.
func NewMetricSet() *MetricSet {
	return &MetricSet{Flags: map[RiskFlag]bool{}}
}

// Absorb folds the KPIs of one completed stage into the set. Matching is by
// KPI name, case-insensitive, mirroring how stages title their metric cards.
// Later values win so the most recent stage's figure is authoritative.
func (m *MetricSet) Absorb(kpis []KPI) {
	for _, kpi := range kpis {
		v := kpi.Value
		name := strings.ToLower(kpi.Name)
		switch {
		case strings.Contains(name, "margin") && strings.Contains(name, "gross"):
			m.GrossMarginPct = &v
		case strings.Contains(name, "revenue") && strings.Contains(name, "net"):
			m.NetRevenue = &v
		case strings.Contains(name, "inventory") && strings.Contains(name, "day"):
			m.InventoryDays = &v
		case strings.Contains(name, "discount"):
			m.DiscountRatePct = &v
		case strings.Contains(name, "repeat"):
			m.RepeatRatePct = &v
		case strings.Contains(name, "health"):
			m.DataHealthScore = &v
		case strings.Contains(name, "units"):
			m.UnitsSold = &v
		}
	}
}

// AbsorbFlags records the risk flags raised by a handoff.
func (m *MetricSet) AbsorbFlags(flags []RiskFlag) {
	for _, f := range flags {
		m.Flags[f] = true
	}
}
