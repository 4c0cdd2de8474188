// Package constraint evaluates the fixed catalog of hard numeric business
// rules against accumulated session metrics. It runs after every completed
// stage so violations surface incrementally, not only at the join.
package constraint

import (
	"fmt"
	"strings"

	"github.com/retailops/boardflow/core"
)

// Catalog constraint names.
const (
	MarginFloor      = "margin_floor"
	MaxDiscount      = "max_discount"
	InventoryDaysMin = "inventory_days_min"
	InventoryDaysMax = "inventory_days_max"
)

// Catalog returns the fixed constraint set. The catalog is read-only after
// startup and shared across sessions.
func Catalog() []core.Constraint {
	return []core.Constraint{
		{Name: MarginFloor, Label: "Margin Floor", Operator: core.OpGTE, Threshold: 18.0, Unit: "%"},
		{Name: MaxDiscount, Label: "Max Discount Cap", Operator: core.OpLTE, Threshold: 12.0, Unit: "%", Waivable: true},
		{Name: InventoryDaysMin, Label: "Inventory Days Min", Operator: core.OpGTE, Threshold: 30, Unit: "days"},
		{Name: InventoryDaysMax, Label: "Inventory Days Max", Operator: core.OpLTE, Threshold: 90, Unit: "days", Waivable: true},
	}
}

// resolutionHints keys a human-readable fix to each constraint.
var resolutionHints = map[string]string{
	MarginFloor:      "Cap discounts at 12% on low-margin SKUs; review category pricing to restore margin above 18%",
	MaxDiscount:      "Restrict promo depth to 12%; shift volume goals to full-price bundles",
	InventoryDaysMin: "Expedite purchase orders; review demand forecast for stockout exposure",
	InventoryDaysMax: "Run clearance promotions on slow movers; pause replenishment for overstocked categories",
}

// metricKeys maps each constraint to the metric vocabulary used when deciding
// whether an existing Critical conflict involves the same metric.
var metricKeys = map[string]string{
	MarginFloor:      "margin",
	MaxDiscount:      "discount",
	InventoryDaysMin: "inventory",
	InventoryDaysMax: "inventory",
}

// Result is one incremental evaluation pass over the accumulated metrics.
// Checks covers the whole catalog; Conflicts holds entries only for
// constraints that newly transitioned to VIOLATED in this pass.
type Result struct {
	Checks    map[string]core.ConstraintCheck
	Conflicts []core.Conflict
}

// Engine evaluates the catalog. It is stateless; per-session memory (prior
// statuses, conflict IDs) is supplied by the caller.
type Engine struct {
	catalog []core.Constraint
}

// NewEngine returns an engine over the default catalog.
func NewEngine() *Engine {
	return &Engine{catalog: Catalog()}
}

// Evaluate checks every catalog constraint against the metric set. A
// constraint with no relevant metric yet is UNKNOWN, never PASS. New
// violations produce a Conflict starting at High severity, escalated to
// Critical when an existing Critical conflict involves the same metric.
func (e *Engine) Evaluate(
	metrics *core.MetricSet,
	prev map[string]core.ConstraintStatus,
	existing []core.Conflict,
	ids *core.ConflictIDGen,
) Result {
	res := Result{Checks: make(map[string]core.ConstraintCheck, len(e.catalog))}

	for _, c := range e.catalog {
		actual := relevantMetric(c.Name, metrics)
		check := core.ConstraintCheck{
			Name:      c.Label,
			Threshold: fmt.Sprintf("%s %g%s", c.Operator, c.Threshold, c.Unit),
			Status:    core.ConstraintUnknown,
		}
		if actual != nil {
			v := *actual
			check.Actual = &v
			if c.Check(v) {
				check.Status = core.ConstraintPass
			} else {
				check.Status = core.ConstraintViolated
			}
		}
		res.Checks[c.Name] = check

		if check.Status == core.ConstraintViolated && prev[c.Name] != core.ConstraintViolated {
			res.Conflicts = append(res.Conflicts, e.violationConflict(c, *actual, existing, ids))
		}
	}
	return res
}

func (e *Engine) violationConflict(c core.Constraint, actual float64, existing []core.Conflict, ids *core.ConflictIDGen) core.Conflict {
	severity := core.SeverityHigh
	key := metricKeys[c.Name]
	for _, prior := range existing {
		if prior.Severity != core.SeverityCritical {
			continue
		}
		if metricKeys[prior.ConstraintViolated] == key || strings.Contains(strings.ToLower(prior.Issue), key) {
			severity = core.SeverityCritical
			break
		}
	}

	return core.Conflict{
		ID:                 ids.Next(),
		Kind:               core.ConflictConstraint,
		Between:            []string{"constraint_engine"},
		Issue:              fmt.Sprintf("%s violated: actual %g%s vs %s", c.Label, actual, c.Unit, c.Describe()),
		Severity:           severity,
		Details:            fmt.Sprintf("actual=%g threshold=%g unit=%s", actual, c.Threshold, c.Unit),
		Resolution:         resolutionHints[c.Name],
		ConstraintViolated: c.Name,
	}
}

// relevantMetric selects the accumulated metric a constraint applies to.
func relevantMetric(name string, m *core.MetricSet) *float64 {
	switch name {
	case MarginFloor:
		return m.GrossMarginPct
	case MaxDiscount:
		return m.DiscountRatePct
	case InventoryDaysMin, InventoryDaysMax:
		return m.InventoryDays
	default:
		return nil
	}
}

// NonWaivable returns the names of catalog constraints whose violation always
// blocks, for the evaluator's blocking-conflict invariant.
func NonWaivable() map[string]bool {
	out := map[string]bool{}
	for _, c := range Catalog() {
		if !c.Waivable {
			out[c.Name] = true
		}
	}
	return out
}
