package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrUpstreamFailed marks a node that was never given real work because one
// of its graph predecessors ended in failure. The node still receives a full
// active→failed lifecycle so the event stream accounts for it.
var ErrUpstreamFailed = errors.New("upstream stage failed")

// Stage is the capability interface every pluggable analysis unit implements.
//
// A stage receives the accumulated context of its predecessors and returns
// KPIs, insights, risk flags and a handoff for its successors. Implementations
// must respect ctx cancellation and must not retain the StageContext after
// returning; retry policy, if any, lives inside the implementation.
type Stage interface {
	// Name returns the node name this stage runs under (e.g. "CFO").
	Name() string

	// Analyze performs the stage's work. A returned error marks the node
	// failed without aborting the session.
	Analyze(ctx context.Context, sc *StageContext) (*StageResult, error)
}

// StageContext carries the upstream context relevant to one stage invocation.
// It is assembled by the orchestrator and read-only for the stage.
type StageContext struct {
	SessionID   string
	FlowID      string
	PeriodStart string
	PeriodEnd   string

	// Handoffs addressed to this stage (or broadcast), in completion order.
	Handoffs []*Handoff

	// KPIs produced by completed predecessors, keyed by stage name.
	UpstreamKPIs map[string][]KPI

	// Successors lists the node names this stage hands off to, per the
	// flow's edge set. Empty for predecessors of the join only.
	Successors []string
}

// Recommendation is an action a stage proposes, with its expected impact.
type Recommendation struct {
	Action   string `json:"action"`
	Impact   string `json:"impact,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// StageResult is the uniform output contract of a successful stage run.
type StageResult struct {
	KPIs            []KPI            `json:"kpis"`
	Insights        []string         `json:"insights,omitempty"`
	Risks           []string         `json:"risks,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Evidence        []EvidenceRef    `json:"evidence,omitempty"`
	Confidence      ConfidenceLabel  `json:"confidence,omitempty"`

	// Handoff is the baton for the stage's successors. The executor stamps
	// From, To and Timestamp; the stage fills content.
	Handoff *Handoff `json:"handoff,omitempty"`
}

// StageError is the typed failure the executor returns instead of letting a
// stage error escape past the orchestrator. Timeout distinguishes deadline
// expiry from an implementation error.
type StageError struct {
	Stage   string
	Err     error
	Timeout bool
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %s timed out", e.Stage)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *StageError) Unwrap() error { return e.Err }
