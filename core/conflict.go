package core

import "fmt"

// ConflictKind categorizes how a conflict was found.
type ConflictKind string

// Conflict kinds. Constraint violations come from the constraint engine;
// the remaining kinds are soft conflicts from the detector.
const (
	ConflictConstraint        ConflictKind = "constraint_violation"
	ConflictContradiction     ConflictKind = "contradiction"
	ConflictPriorityMismatch  ConflictKind = "priority_mismatch"
	ConflictMissingAssumption ConflictKind = "missing_assumption"
	ConflictHorizonMismatch   ConflictKind = "horizon_mismatch"
)

// Conflict is a detected disagreement between stage outputs, or a hard
// constraint violation. Both sources feed the same shape so the evaluator
// and observers handle them uniformly.
type Conflict struct {
	ID                 string       `json:"id"`
	Kind               ConflictKind `json:"kind"`
	Between            []string     `json:"between"`
	Issue              string       `json:"issue"`
	Severity           Severity     `json:"severity"`
	Details            string       `json:"details,omitempty"`
	Resolution         string       `json:"resolution,omitempty"`
	ConstraintViolated string       `json:"constraint_violated,omitempty"`
}

// IsBlocking reports whether this conflict alone forces
// Evaluation.HasBlockingConflicts.
func (c Conflict) IsBlocking() bool { return c.Severity == SeverityCritical }

// ConflictIDGen hands out sequential per-session conflict identifiers
// (C001, C002, ...) so identical inputs always yield identical output.
// Not safe for concurrent use; the orchestrator is its single caller.
type ConflictIDGen struct {
	n int
}

// Next returns the next identifier.
func (g *ConflictIDGen) Next() string {
	g.n++
	return fmt.Sprintf("C%03d", g.n)
}
