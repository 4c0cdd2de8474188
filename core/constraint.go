package core

import "fmt"

// ConstraintOperator is the comparison a hard constraint applies.
type ConstraintOperator string

// Supported constraint operators.
const (
	OpGTE   ConstraintOperator = ">="
	OpLTE   ConstraintOperator = "<="
	OpEQ    ConstraintOperator = "=="
	OpRange ConstraintOperator = "range"
)

// ConstraintStatus is the per-session evaluation state of one constraint.
type ConstraintStatus string

// Constraint statuses. A constraint with no relevant metric yet available is
// UNKNOWN, never PASS.
const (
	ConstraintPass     ConstraintStatus = "PASS"
	ConstraintViolated ConstraintStatus = "VIOLATED"
	ConstraintUnknown  ConstraintStatus = "UNKNOWN"
)

// Constraint is a non-negotiable numeric business rule from the static
// catalog. Range constraints use both Threshold (low) and Upper (high).
// Waivable constraints still produce conflicts on violation but do not by
// themselves set Evaluation.HasBlockingConflicts.
type Constraint struct {
	Name      string             `json:"name"`
	Label     string             `json:"label"`
	Operator  ConstraintOperator `json:"operator"`
	Threshold float64            `json:"threshold"`
	Upper     float64            `json:"upper,omitempty"`
	Unit      string             `json:"unit,omitempty"`
	Waivable  bool               `json:"waivable,omitempty"`
}

// Check reports whether the actual value satisfies the constraint.
func (c Constraint) Check(actual float64) bool {
	switch c.Operator {
	case OpGTE:
		return actual >= c.Threshold
	case OpLTE:
		return actual <= c.Threshold
	case OpEQ:
		return actual == c.Threshold
	case OpRange:
		return actual >= c.Threshold && actual <= c.Upper
	default:
		return false
	}
}

// Describe renders the rule in human-readable form, e.g. "margin_floor >= 18%".
func (c Constraint) Describe() string {
	if c.Operator == OpRange {
		return fmt.Sprintf("%s in [%g, %g] %s", c.Name, c.Threshold, c.Upper, c.Unit)
	}
	return fmt.Sprintf("%s %s %g%s", c.Name, c.Operator, c.Threshold, c.Unit)
}

// ConstraintCheck is the recorded outcome of evaluating one constraint, kept
// on the session and surfaced in the evaluation payload.
type ConstraintCheck struct {
	Name      string           `json:"name"`
	Threshold string           `json:"threshold"`
	Actual    *float64         `json:"actual,omitempty"`
	Status    ConstraintStatus `json:"status"`
}
