// Package confidence implements the pre-flight data-confidence gate. The
// gate scores data trustworthiness from five weighted factors and decides
// whether a session may proceed before any stage runs.
package confidence

import (
	"context"
	"fmt"
	"math"

	"github.com/retailops/boardflow/core"
	"github.com/retailops/boardflow/logging"
)

// Factor weights. They sum to 1.0.
const (
	WeightFreshness    = 0.30
	WeightHealthChecks = 0.25
	WeightDataQuality  = 0.20
	WeightCoverage     = 0.15
	WeightIntegrity    = 0.10
)

// Score bands. CanProceed is true only for High and Medium.
const (
	bandHigh   = 80.0
	bandMedium = 60.0
	bandLow    = 40.0
)

// Per-factor thresholds for warnings and blocking issues.
const (
	factorWarnBelow  = 70.0
	factorBlockBelow = 40.0
)

// Factors carries the five raw factor scores produced by the pluggable data
// check. Each is expected in [0,100]; out-of-range values are clamped.
type Factors struct {
	Freshness    float64
	HealthChecks float64
	DataQuality  float64
	Coverage     float64
	Integrity    float64
}

// DataCheck is the collaborator boundary to the underlying data store's
// quality views. Implementations must be side-effect free.
type DataCheck interface {
	Check(ctx context.Context, periodStart, periodEnd string) (Factors, error)
}

// Options configures the gate.
type Options struct {
	Logger logging.Logger
}

// Gate computes ConfidenceReports from a DataCheck. It is stateless and safe
// for concurrent use.
type Gate struct {
	check  DataCheck
	logger logging.Logger
}

// NewGate constructs a gate over the given data check.
func NewGate(check DataCheck, optFns ...func(o *Options)) *Gate {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gate{check: check, logger: opts.Logger}
}

// Assess computes the weighted confidence report. A failing data check is
// treated as Critical with a blocking issue naming the failure; it never
// silently defaults to a passing confidence.
func (g *Gate) Assess(ctx context.Context, periodStart, periodEnd string) *core.ConfidenceReport {
	factors, err := g.check.Check(ctx, periodStart, periodEnd)
	if err != nil {
		g.logger.Error("confidence data check failed", "error", err)
		return &core.ConfidenceReport{
			Level:          core.ConfidenceLevelCritical,
			Score:          0,
			CanProceed:     false,
			Summary:        "Confidence check failed; data state unknown. Resolve the data check before proceeding.",
			BlockingIssues: []string{fmt.Sprintf("data check error: %v", err)},
		}
	}
	return Score(factors)
}

// Score turns raw factor scores into a banded report. Split out from Assess
// so callers with precomputed factors (and tests) can band deterministically.
func Score(f Factors) *core.ConfidenceReport {
	weighted := []core.ConfidenceFactor{
		{Name: "Data Freshness", Score: clamp(f.Freshness), Weight: WeightFreshness},
		{Name: "Health Checks", Score: clamp(f.HealthChecks), Weight: WeightHealthChecks},
		{Name: "Data Quality", Score: clamp(f.DataQuality), Weight: WeightDataQuality},
		{Name: "Coverage", Score: clamp(f.Coverage), Weight: WeightCoverage},
		{Name: "Referential Integrity", Score: clamp(f.Integrity), Weight: WeightIntegrity},
	}

	var score float64
	var blocking, warnings []string
	for i := range weighted {
		score += weighted[i].Score * weighted[i].Weight
		switch {
		case weighted[i].Score < factorBlockBelow:
			weighted[i].Details = fmt.Sprintf("%s failing at %.0f/100", weighted[i].Name, weighted[i].Score)
			blocking = append(blocking, weighted[i].Details)
		case weighted[i].Score < factorWarnBelow:
			weighted[i].Details = fmt.Sprintf("%s degraded at %.0f/100", weighted[i].Name, weighted[i].Score)
			warnings = append(warnings, weighted[i].Details)
		}
	}
	score = math.Round(score*10) / 10

	level := Band(score)
	canProceed := level == core.ConfidenceLevelHigh || level == core.ConfidenceLevelMedium

	return &core.ConfidenceReport{
		Level:          level,
		Score:          score,
		CanProceed:     canProceed,
		Summary:        summarize(level, len(blocking), len(warnings)),
		Factors:        weighted,
		BlockingIssues: blocking,
		Warnings:       warnings,
	}
}

// Band maps a 0-100 score to its confidence level.
func Band(score float64) core.ConfidenceLevel {
	switch {
	case score >= bandHigh:
		return core.ConfidenceLevelHigh
	case score >= bandMedium:
		return core.ConfidenceLevelMedium
	case score >= bandLow:
		return core.ConfidenceLevelLow
	default:
		return core.ConfidenceLevelCritical
	}
}

func summarize(level core.ConfidenceLevel, blocking, warnings int) string {
	switch level {
	case core.ConfidenceLevelHigh:
		return "Data quality excellent. All checks passing. Decisions can proceed with high confidence."
	case core.ConfidenceLevelMedium:
		return fmt.Sprintf("Data quality acceptable with %d warnings. Review noted issues before critical decisions.", warnings)
	case core.ConfidenceLevelLow:
		return fmt.Sprintf("Data quality degraded: %d blocking issues, %d warnings. Execution blocked.", blocking, warnings)
	default:
		return fmt.Sprintf("Data quality critical: %d blocking issues. Resolve the data pipeline before proceeding.", blocking)
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// StaticCheck is a DataCheck returning fixed factors, optionally failing with
// Err. It backs tests and fixture-driven demo runs.
type StaticCheck struct {
	Factors Factors
	Err     error
}

// Check implements DataCheck.
func (s StaticCheck) Check(context.Context, string, string) (Factors, error) {
	if s.Err != nil {
		return Factors{}, s.Err
	}
	return s.Factors, nil
}
