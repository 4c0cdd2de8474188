package flowspec

import (
	"fmt"
	"sort"
	"sync"
)

// Role node names used by the built-in flows.
const (
	NodeCEO       = "CEO"
	NodeCFO       = "CFO"
	NodeCMO       = "CMO"
	NodeCIO       = "CIO"
	NodeEvaluator = "Evaluator"
)

// Built-in flow identifiers.
const (
	FlowKPIReview = "kpi_review"
	FlowTradeOff  = "trade_off"
	FlowScenario  = "scenario"
	FlowRootCause = "root_cause"
)

// Registry is the static flow catalog. It is populated at startup and safe
// for concurrent reads from any number of sessions.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*FlowSpec
}

// NewRegistry returns a registry preloaded with the four built-in flows.
func NewRegistry() *Registry {
	r := &Registry{specs: map[string]*FlowSpec{}}
	for _, spec := range builtins() {
		// Builtins are constructed valid; a panic here is a programming error.
		if err := r.Register(spec); err != nil {
			panic(fmt.Sprintf("flowspec: invalid builtin %s: %v", spec.ID, err))
		}
	}
	return r
}

func builtins() []*FlowSpec {
	return []*FlowSpec{
		Chain(FlowKPIReview, "KPI Review",
			"Sequential review: CEO -> CFO -> CMO -> CIO -> Evaluator",
			NodeCEO, NodeCFO, NodeCMO, NodeCIO, NodeEvaluator),
		FanIn(FlowTradeOff, "Trade-off Analysis",
			"Parallel debate: [CFO || CMO] -> Evaluator",
			[]string{NodeCFO, NodeCMO}, NodeEvaluator),
		Chain(FlowScenario, "Scenario Simulation",
			"What-if analysis: CFO -> CMO -> Evaluator",
			NodeCFO, NodeCMO, NodeEvaluator),
		Chain(FlowRootCause, "Root Cause Analysis",
			"Diagnostic flow: CIO -> CFO -> CMO -> Evaluator",
			NodeCIO, NodeCFO, NodeCMO, NodeEvaluator),
	}
}

// Register validates and adds a spec. Registering a duplicate ID is an error.
func (r *Registry) Register(spec *FlowSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.ID]; exists {
		return fmt.Errorf("flow %s already registered", spec.ID)
	}
	r.specs[spec.ID] = spec
	return nil
}

// Resolve maps a flow identifier to its spec.
func (r *Registry) Resolve(flowID string) (*FlowSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, flowID)
	}
	return spec, nil
}

// List returns all registered specs ordered by ID.
func (r *Registry) List() []*FlowSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FlowSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
