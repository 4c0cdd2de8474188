package core

// ConfidenceLevel bands the pre-flight data-trust score.
type ConfidenceLevel string

// Confidence levels. Only High and Medium permit a session to proceed.
const (
	ConfidenceLevelHigh     ConfidenceLevel = "High"
	ConfidenceLevelMedium   ConfidenceLevel = "Medium"
	ConfidenceLevelLow      ConfidenceLevel = "Low"
	ConfidenceLevelCritical ConfidenceLevel = "Critical"
)

// ConfidenceFactor is one weighted input to the data-trust score, normalized
// to 0-100 before weighting.
type ConfidenceFactor struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Weight  float64 `json:"weight"`
	Details string  `json:"details,omitempty"`
}

// ConfidenceReport is the outcome of the pre-flight data-confidence check.
// It is computed once per session, before any stage executes, and is
// immutable afterward.
type ConfidenceReport struct {
	Level          ConfidenceLevel    `json:"level"`
	Score          float64            `json:"score"`
	CanProceed     bool               `json:"can_proceed"`
	Summary        string             `json:"summary"`
	Factors        []ConfidenceFactor `json:"factors,omitempty"`
	BlockingIssues []string           `json:"blocking_issues,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
}
