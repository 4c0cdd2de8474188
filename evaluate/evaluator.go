// Package evaluate computes the final weighted multi-dimension score over
// everything the completed stages produced: KPIs, handoffs, constraint
// statuses and conflicts. Scoring is deterministic; replaying the same
// inputs yields byte-identical output.
package evaluate

import (
	"fmt"
	"math"
	"sort"

	"github.com/retailops/boardflow/constraint"
	"github.com/retailops/boardflow/core"
)

// Dimension labels and weights. Weights sum to 1.0.
const (
	DimProfitability = "Profitability Safety"
	DimGrowth        = "Growth Impact"
	DimInventory     = "Inventory Health"
	DimOperational   = "Operational Risk"
	DimDataConf      = "Data Confidence"

	WeightProfitability = 0.30
	WeightGrowth        = 0.25
	WeightInventory     = 0.20
	WeightOperational   = 0.15
	WeightDataConf      = 0.10
)

// failedStagePenalty is subtracted from the data-confidence dimension per
// failed predecessor when PenalizeFailures is on.
const failedStagePenalty = 2.0

// Input bundles everything the evaluator scores, gathered by the orchestrator
// at join-node activation.
type Input struct {
	SessionID            string
	StageKPIs            map[string][]core.KPI
	Handoffs             []*core.Handoff
	StageRecommendations map[string][]core.Recommendation
	ConstraintChecks     map[string]core.ConstraintCheck
	Conflicts            []core.Conflict
	Confidence           *core.ConfidenceReport
	FailedStages         []string
}

// Options configures evaluation policy.
type Options struct {
	// PenalizeFailures lowers the data-confidence dimension for each failed
	// predecessor instead of scoring only on the data that arrived.
	PenalizeFailures bool
}

// Evaluator computes Evaluations. Safe for concurrent use.
type Evaluator struct {
	penalizeFailures bool
	nonWaivable      map[string]bool
}

// New constructs an evaluator. Failure penalization defaults to on.
func New(optFns ...func(o *Options)) *Evaluator {
	opts := Options{PenalizeFailures: true}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Evaluator{
		penalizeFailures: opts.PenalizeFailures,
		nonWaivable:      constraint.NonWaivable(),
	}
}

// Evaluate runs the full scoring pass. It is called exactly once per session,
// at the join node, over the accumulated outputs of all predecessor nodes.
func (e *Evaluator) Evaluate(in Input) *core.Evaluation {
	metrics := core.NewMetricSet()
	for _, stage := range sortedStages(in.StageKPIs) {
		metrics.Absorb(in.StageKPIs[stage])
	}
	for _, h := range in.Handoffs {
		metrics.AbsorbFlags(h.Flags)
	}

	violated := violatedNames(in.ConstraintChecks)

	dims := []core.DimensionScore{
		e.scoreProfitability(metrics, in.ConstraintChecks),
		e.scoreGrowth(metrics),
		e.scoreInventory(metrics, in.ConstraintChecks),
		e.scoreOperational(in.Conflicts),
		e.scoreDataConfidence(metrics, in.Confidence, in.FailedStages),
	}

	var overall float64
	for _, d := range dims {
		overall += d.WeightedScore
	}
	overall = math.Round(overall*10) / 10

	blocking := hasBlocking(in.Conflicts, in.ConstraintChecks, e.nonWaivable)

	return &core.Evaluation{
		SessionID:            in.SessionID,
		OverallScore:         overall,
		RiskLevel:            BandRisk(overall),
		Confidence:           e.confidenceLabel(in),
		DimensionScores:      dims,
		Conflicts:            in.Conflicts,
		HasBlockingConflicts: blocking,
		Decisions:            e.decisions(in),
		ConstraintsChecked:   in.ConstraintChecks,
		ConstraintsViolated:  violated,
		StagesEvaluated:      sortedStages(in.StageKPIs),
		StagesFailed:         in.FailedStages,
		Reasons:              e.reasons(in, violated),
	}
}

// BandRisk maps the overall score to a risk level.
func BandRisk(score float64) core.RiskLevel {
	switch {
	case score >= 8.0:
		return core.RiskLow
	case score >= 6.0:
		return core.RiskMedium
	case score >= 4.0:
		return core.RiskHigh
	default:
		return core.RiskCritical
	}
}

func (e *Evaluator) scoreProfitability(m *core.MetricSet, checks map[string]core.ConstraintCheck) core.DimensionScore {
	score := 10.0
	var factors, warnings []string

	if m.GrossMarginPct != nil {
		margin := *m.GrossMarginPct
		switch {
		case margin >= 25:
			score = 10.0
			factors = append(factors, fmt.Sprintf("Strong margin: %.1f%%", margin))
		case margin >= 20:
			score = 8.0
			factors = append(factors, fmt.Sprintf("Healthy margin: %.1f%%", margin))
		case margin >= 18:
			score = 6.0
			warnings = append(warnings, fmt.Sprintf("Margin near floor: %.1f%%", margin))
		default:
			score = 3.0
			warnings = append(warnings, fmt.Sprintf("Margin below floor: %.1f%%", margin))
		}
	}
	if checks[constraint.MarginFloor].Status == core.ConstraintViolated {
		score = math.Min(score, 3.0)
	}
	if checks[constraint.MaxDiscount].Status == core.ConstraintViolated {
		score = math.Max(0, score-2.0)
		warnings = append(warnings, "Discount cap exceeded")
	}

	return dimension(DimProfitability, score, WeightProfitability, factors, warnings)
}

func (e *Evaluator) scoreGrowth(m *core.MetricSet) core.DimensionScore {
	score := 7.0
	var factors, warnings []string

	if m.NetRevenue != nil {
		score = 7.5
		factors = append(factors, fmt.Sprintf("Revenue: $%.0f", *m.NetRevenue))
	}
	if m.RepeatRatePct != nil {
		switch {
		case *m.RepeatRatePct >= 50:
			score += 1.0
			factors = append(factors, fmt.Sprintf("Strong retention: %.1f%%", *m.RepeatRatePct))
		case *m.RepeatRatePct < 30:
			score -= 1.0
			warnings = append(warnings, fmt.Sprintf("Low retention: %.1f%%", *m.RepeatRatePct))
		}
	}
	if m.Flags[core.FlagRevenueDeclining] {
		score -= 2.0
		warnings = append(warnings, "Revenue declining flag raised")
	}

	return dimension(DimGrowth, clampScore(score), WeightGrowth, factors, warnings)
}

func (e *Evaluator) scoreInventory(m *core.MetricSet, checks map[string]core.ConstraintCheck) core.DimensionScore {
	score := 7.0
	var factors, warnings []string

	if m.InventoryDays != nil {
		days := *m.InventoryDays
		switch {
		case days >= 45 && days <= 60:
			score = 10.0
			factors = append(factors, fmt.Sprintf("Optimal inventory: %.0f days", days))
		case (days >= 30 && days < 45) || (days > 60 && days <= 75):
			score = 7.0
			warnings = append(warnings, fmt.Sprintf("Inventory outside target: %.0f days", days))
		default:
			score = 4.0
			warnings = append(warnings, fmt.Sprintf("Inventory critical: %.0f days", days))
		}
	}
	if checks[constraint.InventoryDaysMin].Status == core.ConstraintViolated ||
		checks[constraint.InventoryDaysMax].Status == core.ConstraintViolated {
		score = math.Min(score, 4.0)
	}

	return dimension(DimInventory, score, WeightInventory, factors, warnings)
}

func (e *Evaluator) scoreOperational(conflicts []core.Conflict) core.DimensionScore {
	score := 8.0
	var factors, warnings []string

	var high, medium int
	for _, c := range conflicts {
		switch {
		case c.Severity == core.SeverityHigh || c.Severity == core.SeverityCritical:
			high++
		case c.Severity == core.SeverityMedium:
			medium++
		}
	}
	if high > 0 {
		score -= float64(high) * 2.0
		warnings = append(warnings, fmt.Sprintf("%d high-severity conflicts", high))
	}
	if medium > 0 {
		score -= float64(medium) * 0.5
		warnings = append(warnings, fmt.Sprintf("%d medium-severity conflicts", medium))
	}
	if score >= 7 {
		factors = append(factors, "Operations stable")
	}

	return dimension(DimOperational, clampScore(score), WeightOperational, factors, warnings)
}

func (e *Evaluator) scoreDataConfidence(m *core.MetricSet, report *core.ConfidenceReport, failed []string) core.DimensionScore {
	score := 6.0
	var factors, warnings []string

	if report != nil {
		switch report.Level {
		case core.ConfidenceLevelHigh:
			score = 10.0
			factors = append(factors, fmt.Sprintf("Pre-flight confidence %.1f (High)", report.Score))
		case core.ConfidenceLevelMedium:
			score = 7.0
			factors = append(factors, fmt.Sprintf("Pre-flight confidence %.1f (Medium)", report.Score))
		case core.ConfidenceLevelLow:
			score = 4.0
			warnings = append(warnings, fmt.Sprintf("Pre-flight confidence %.1f (Low)", report.Score))
		default:
			score = 2.0
			warnings = append(warnings, fmt.Sprintf("Pre-flight confidence %.1f (Critical)", report.Score))
		}
	}
	if m.DataHealthScore != nil {
		switch {
		case *m.DataHealthScore >= 90:
			factors = append(factors, fmt.Sprintf("Data health excellent: %.0f%%", *m.DataHealthScore))
		case *m.DataHealthScore >= 70:
			score = math.Min(score, 7.0)
			factors = append(factors, fmt.Sprintf("Data health acceptable: %.0f%%", *m.DataHealthScore))
		default:
			score = math.Min(score, 4.0)
			warnings = append(warnings, fmt.Sprintf("Data health concerns: %.0f%%", *m.DataHealthScore))
		}
	}
	if m.Flags[core.FlagDataStale] {
		score = math.Min(score, 3.0)
		warnings = append(warnings, "Data staleness flag raised")
	}
	if e.penalizeFailures && len(failed) > 0 {
		score -= float64(len(failed)) * failedStagePenalty
		warnings = append(warnings, fmt.Sprintf("%d stage(s) failed; scoring on partial data", len(failed)))
	}

	return dimension(DimDataConf, clampScore(score), WeightDataConf, factors, warnings)
}

func (e *Evaluator) confidenceLabel(in Input) core.ConfidenceLabel {
	if in.Confidence != nil && !in.Confidence.CanProceed {
		return core.ConfidenceLow
	}
	for _, c := range in.Conflicts {
		if c.Severity == core.SeverityCritical {
			return core.ConfidenceLow
		}
	}
	if len(in.Conflicts) > 2 || len(in.FailedStages) > 0 {
		return core.ConfidenceMedium
	}
	return core.ConfidenceHigh
}

// decisions derives one recommended action per High/Critical conflict, then
// forwards stage-proposed actions whose stage is not party to any such
// conflict.
func (e *Evaluator) decisions(in Input) []core.Decision {
	var out []core.Decision
	contradicted := map[string]bool{}

	for _, c := range in.Conflicts {
		if c.Severity != core.SeverityHigh && c.Severity != core.SeverityCritical {
			continue
		}
		for _, stage := range c.Between {
			contradicted[stage] = true
		}
		action := c.Resolution
		if action == "" {
			action = "Resolve: " + c.Issue
		}
		check := "PASS"
		if c.ConstraintViolated != "" {
			check = "VIOLATED"
		}
		out = append(out, core.Decision{
			Action:          action,
			Impact:          c.Issue,
			Priority:        string(c.Severity),
			Confidence:      string(core.ConfidenceHigh),
			ConstraintCheck: check,
		})
	}

	for _, stage := range sortedStages(in.StageRecommendations) {
		if contradicted[stage] {
			continue
		}
		for _, rec := range in.StageRecommendations[stage] {
			out = append(out, core.Decision{
				Action:          rec.Action,
				Impact:          rec.Impact,
				Priority:        rec.Priority,
				Confidence:      string(core.ConfidenceMedium),
				ConstraintCheck: "PASS",
			})
		}
	}
	return out
}

func (e *Evaluator) reasons(in Input, violated []string) []string {
	reasons := []string{
		fmt.Sprintf("Evaluated %d stages", len(in.StageKPIs)),
		fmt.Sprintf("%d conflicts detected", len(in.Conflicts)),
		fmt.Sprintf("%d constraints violated", len(violated)),
	}
	if len(in.FailedStages) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d stages failed: %v", len(in.FailedStages), in.FailedStages))
	}
	return reasons
}

func hasBlocking(conflicts []core.Conflict, checks map[string]core.ConstraintCheck, nonWaivable map[string]bool) bool {
	for _, c := range conflicts {
		if c.IsBlocking() {
			return true
		}
	}
	for name, check := range checks {
		if check.Status == core.ConstraintViolated && nonWaivable[name] {
			return true
		}
	}
	return false
}

func violatedNames(checks map[string]core.ConstraintCheck) []string {
	var out []string
	for name, check := range checks {
		if check.Status == core.ConstraintViolated {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func dimension(name string, score, weight float64, factors, warnings []string) core.DimensionScore {
	return core.DimensionScore{
		Dimension:     name,
		Score:         score,
		Weight:        weight,
		WeightedScore: score * weight,
		Factors:       factors,
		Warnings:      warnings,
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}

func sortedStages[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
