package core

// RiskLevel bands the overall evaluation score.
type RiskLevel string

// Risk levels.
const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// DimensionScore is one weighted axis of the final evaluation.
type DimensionScore struct {
	Dimension     string   `json:"dimension"`
	Score         float64  `json:"score"`
	Weight        float64  `json:"weight"`
	WeightedScore float64  `json:"weighted_score"`
	Factors       []string `json:"factors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Decision is a recommended action derived by the evaluator, either resolving
// a conflict or forwarding an uncontradicted stage proposal.
type Decision struct {
	Action          string `json:"action"`
	Impact          string `json:"impact,omitempty"`
	Priority        string `json:"priority,omitempty"`
	Confidence      string `json:"confidence,omitempty"`
	ConstraintCheck string `json:"constraint_check,omitempty"`
}

// Evaluation is the weighted multi-dimension score computed exactly once, at
// the join node, over the full set of completed stage outputs.
//
// HasBlockingConflicts is true iff any conflict is Critical or any
// non-waivable constraint is VIOLATED.
type Evaluation struct {
	SessionID            string                     `json:"session_id"`
	OverallScore         float64                    `json:"overall_score"`
	RiskLevel            RiskLevel                  `json:"risk_level"`
	Confidence           ConfidenceLabel            `json:"confidence"`
	DimensionScores      []DimensionScore           `json:"dimension_scores"`
	Conflicts            []Conflict                 `json:"conflicts"`
	HasBlockingConflicts bool                       `json:"has_blocking_conflicts"`
	Decisions            []Decision                 `json:"decisions"`
	ConstraintsChecked   map[string]ConstraintCheck `json:"constraints_checked"`
	ConstraintsViolated  []string                   `json:"constraints_violated"`
	StagesEvaluated      []string                   `json:"stages_evaluated"`
	StagesFailed         []string                   `json:"stages_failed,omitempty"`
	Reasons              []string                   `json:"reasons,omitempty"`
}
