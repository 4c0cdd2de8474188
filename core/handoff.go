package core

import "time"

// Severity grades flags, signals and conflicts.
type Severity string

// Severity levels, ordered Low < Medium < High < Critical.
const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Rank returns the ordering position of a severity, with unknown values
// ranking below Low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// RiskFlag is a standardized tag a stage can raise to warn its successors.
type RiskFlag string

// Standard risk flags.
const (
	FlagMarginBelowFloor     RiskFlag = "MARGIN_BELOW_FLOOR"
	FlagMarginCritical       RiskFlag = "MARGIN_CRITICAL"
	FlagInventoryHigh        RiskFlag = "INVENTORY_HIGH"
	FlagInventoryLow         RiskFlag = "INVENTORY_LOW"
	FlagRevenueDeclining     RiskFlag = "REVENUE_DECLINING"
	FlagPromoCannibalization RiskFlag = "PROMO_CANNIBALIZATION"
	FlagDataStale            RiskFlag = "DATA_STALE"
	FlagDataQualityIssue     RiskFlag = "DATA_QUALITY_ISSUE"
	FlagCustomerChurnRisk    RiskFlag = "CUSTOMER_CHURN_RISK"
	FlagDiscountExcessive    RiskFlag = "DISCOUNT_EXCESSIVE"
)

// FocusArea narrows a successor stage's attention to a specific slice of the
// business (a category, region, segment or metric breach).
type FocusArea struct {
	Category  string  `json:"category,omitempty"`
	Region    string  `json:"region,omitempty"`
	Segment   string  `json:"segment,omitempty"`
	Metric    string  `json:"metric,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// EvidenceRef points at the data a stage based a finding on.
type EvidenceRef struct {
	View     string `json:"view"`
	QueryID  string `json:"query_id,omitempty"`
	Filters  string `json:"filters,omitempty"`
	RowCount int    `json:"row_count,omitempty"`
}

// Handoff is the baton passed from a completed stage to its successors. It
// carries everything the receiving stage needs to continue: headline KPIs,
// raised flags, metric signals, focus areas and the evidence trail.
//
// Handoffs are append-only per session, ordered by completion time, and
// immutable once published.
type Handoff struct {
	From       string      `json:"from"`
	To         string      `json:"to"`
	Reason     string      `json:"reason,omitempty"`
	Priority   Severity    `json:"priority,omitempty"`
	Flags      []RiskFlag  `json:"flags,omitempty"`
	Signals    []Signal    `json:"signals,omitempty"`
	KPISummary []KPI       `json:"kpi_summary,omitempty"`
	FocusAreas []FocusArea `json:"focus_areas,omitempty"`
	Evidence   []EvidenceRef `json:"evidence,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// AddFlag raises a risk flag, deduplicating repeats.
func (h *Handoff) AddFlag(flag RiskFlag) {
	for _, f := range h.Flags {
		if f == flag {
			return
		}
	}
	h.Flags = append(h.Flags, flag)
}

// AddSignal appends a metric observation.
func (h *Handoff) AddSignal(metric string, value float64, direction Trend, severity Severity, context string) {
	h.Signals = append(h.Signals, Signal{
		Metric:    metric,
		Value:     value,
		Direction: direction,
		Severity:  severity,
		Context:   context,
	})
}

// AddKPI appends a KPI to the handoff summary.
func (h *Handoff) AddKPI(kpi KPI) {
	h.KPISummary = append(h.KPISummary, kpi)
}

// HasFlag reports whether the handoff raised the given flag.
func (h *Handoff) HasFlag(flag RiskFlag) bool {
	for _, f := range h.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
