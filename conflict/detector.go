// Package conflict detects soft disagreements between stage outputs:
// contradictory signals, diverging priorities, unsupported assumptions and
// mismatched time horizons. Detection is heuristic and makes no completeness
// guarantee, but it is strictly deterministic: identical inputs always
// produce identical conflicts in identical order.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/retailops/boardflow/core"
)

// Category default severities.
const (
	severityContradiction     = core.SeverityHigh
	severityPriorityMismatch  = core.SeverityMedium
	severityMissingAssumption = core.SeverityLow
	severityHorizonMismatch   = core.SeverityMedium
)

// Detector scans handoffs and KPIs for soft conflicts. It is stateless and
// safe for concurrent use across sessions.
type Detector struct{}

// NewDetector constructs a detector.
func NewDetector() *Detector { return &Detector{} }

// Detect runs all heuristics over the handoffs and per-stage KPIs produced
// so far. Inputs are sorted internally, so callers need not normalize order.
func (d *Detector) Detect(
	handoffs []*core.Handoff,
	stageKPIs map[string][]core.KPI,
	ids *core.ConflictIDGen,
) []core.Conflict {
	sorted := make([]*core.Handoff, len(handoffs))
	copy(sorted, handoffs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})

	stages := make([]string, 0, len(stageKPIs))
	for name := range stageKPIs {
		stages = append(stages, name)
	}
	sort.Strings(stages)

	var conflicts []core.Conflict
	conflicts = append(conflicts, d.contradictions(sorted, ids)...)
	conflicts = append(conflicts, d.priorityMismatches(sorted, ids)...)
	conflicts = append(conflicts, d.missingAssumptions(sorted, stages, stageKPIs, ids)...)
	conflicts = append(conflicts, d.horizonMismatches(stages, stageKPIs, ids)...)
	return conflicts
}

// contradictions finds two stages signalling the same metric with opposite
// polarity (one pushing UP, the other DOWN).
func (d *Detector) contradictions(handoffs []*core.Handoff, ids *core.ConflictIDGen) []core.Conflict {
	var out []core.Conflict
	seen := map[string]bool{}

	for i := 0; i < len(handoffs); i++ {
		for j := i + 1; j < len(handoffs); j++ {
			a, b := handoffs[i], handoffs[j]
			if a.From == b.From {
				continue
			}
			for _, sa := range a.Signals {
				for _, sb := range b.Signals {
					if !sameMetric(sa.Metric, sb.Metric) || !opposed(sa.Direction, sb.Direction) {
						continue
					}
					key := pairKey(a.From, b.From) + "|" + normalize(sa.Metric)
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, core.Conflict{
						ID:       ids.Next(),
						Kind:     core.ConflictContradiction,
						Between:  orderedPair(a.From, b.From),
						Issue:    fmt.Sprintf("Contradictory direction on %s: %s signals %s, %s signals %s", sa.Metric, a.From, sa.Direction, b.From, sb.Direction),
						Severity: severityContradiction,
						Details:  fmt.Sprintf("%s=%g vs %s=%g", a.From, sa.Value, b.From, sb.Value),
						Resolution: fmt.Sprintf("Reconcile %s and %s positions on %s before acting", a.From, b.From, sa.Metric),
					})
				}
			}
		}
	}
	return out
}

// priorityMismatches flags handoff pairs whose stated priorities diverge by
// two or more severity ranks.
func (d *Detector) priorityMismatches(handoffs []*core.Handoff, ids *core.ConflictIDGen) []core.Conflict {
	var out []core.Conflict
	seen := map[string]bool{}

	for i := 0; i < len(handoffs); i++ {
		for j := i + 1; j < len(handoffs); j++ {
			a, b := handoffs[i], handoffs[j]
			if a.From == b.From || a.Priority == "" || b.Priority == "" {
				continue
			}
			gap := a.Priority.Rank() - b.Priority.Rank()
			if gap < 0 {
				gap = -gap
			}
			if gap < 2 {
				continue
			}
			key := pairKey(a.From, b.From)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, core.Conflict{
				ID:       ids.Next(),
				Kind:     core.ConflictPriorityMismatch,
				Between:  orderedPair(a.From, b.From),
				Issue:    fmt.Sprintf("Priority divergence: %s rates the situation %s while %s rates it %s", a.From, a.Priority, b.From, b.Priority),
				Severity: severityPriorityMismatch,
				Resolution: "Align on urgency before committing resources",
			})
		}
	}
	return out
}

// missingAssumptions flags a focus area whose metric no other stage backed
// with a KPI: the stage is assuming data nobody produced.
func (d *Detector) missingAssumptions(
	handoffs []*core.Handoff,
	stages []string,
	stageKPIs map[string][]core.KPI,
	ids *core.ConflictIDGen,
) []core.Conflict {
	var out []core.Conflict
	seen := map[string]bool{}

	for _, h := range handoffs {
		for _, fa := range h.FocusAreas {
			if fa.Metric == "" || fa.Threshold == 0 {
				continue
			}
			supported := false
			for _, stage := range stages {
				if stage == h.From {
					continue
				}
				for _, kpi := range stageKPIs[stage] {
					if sameMetric(kpi.Name, fa.Metric) {
						supported = true
						break
					}
				}
				if supported {
					break
				}
			}
			if supported {
				continue
			}
			key := h.From + "|" + normalize(fa.Metric)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, core.Conflict{
				ID:       ids.Next(),
				Kind:     core.ConflictMissingAssumption,
				Between:  []string{h.From},
				Issue:    fmt.Sprintf("%s assumes %s against threshold %g but no other stage produced that metric", h.From, fa.Metric, fa.Threshold),
				Severity: severityMissingAssumption,
				Resolution: fmt.Sprintf("Source %s data before relying on this focus area", fa.Metric),
			})
		}
	}
	return out
}

// horizonMismatches flags the same metric reported over different windows by
// different stages, which makes their recommendations incomparable.
func (d *Detector) horizonMismatches(
	stages []string,
	stageKPIs map[string][]core.KPI,
	ids *core.ConflictIDGen,
) []core.Conflict {
	var out []core.Conflict
	seen := map[string]bool{}

	for i := 0; i < len(stages); i++ {
		for j := i + 1; j < len(stages); j++ {
			for _, ka := range stageKPIs[stages[i]] {
				for _, kb := range stageKPIs[stages[j]] {
					if !sameMetric(ka.Name, kb.Name) || ka.Window == "" || kb.Window == "" || ka.Window == kb.Window {
						continue
					}
					key := pairKey(stages[i], stages[j]) + "|" + normalize(ka.Name)
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, core.Conflict{
						ID:       ids.Next(),
						Kind:     core.ConflictHorizonMismatch,
						Between:  orderedPair(stages[i], stages[j]),
						Issue:    fmt.Sprintf("Horizon mismatch on %s: %s uses window %q, %s uses %q", ka.Name, stages[i], ka.Window, stages[j], kb.Window),
						Severity: severityHorizonMismatch,
						Resolution: "Re-baseline both figures on a common window",
					})
				}
			}
		}
	}
	return out
}

func normalize(metric string) string {
	return strings.Join(strings.Fields(strings.ToLower(metric)), " ")
}

func sameMetric(a, b string) bool {
	na, nb := normalize(a), normalize(b)
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

func opposed(a, b core.Trend) bool {
	return (a == core.TrendUp && b == core.TrendDown) || (a == core.TrendDown && b == core.TrendUp)
}

func orderedPair(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}

func pairKey(a, b string) string {
	p := orderedPair(a, b)
	return p[0] + "|" + p[1]
}
