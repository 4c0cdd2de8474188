package flowspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainBuildsSequentialSpec(t *testing.T) {
	spec := Chain("demo", "Demo", "", "A", "B", "C")

	require.NoError(t, spec.Validate())
	assert.Equal(t, "C", spec.Join)
	assert.Equal(t, []Edge{{From: "A", To: "B"}, {From: "B", To: "C"}}, spec.Edges)
	assert.Equal(t, []string{"A", "B"}, spec.StageNodes())
}

func TestFanInBuildsParallelSpec(t *testing.T) {
	spec := FanIn("demo", "Demo", "", []string{"A", "B"}, "J")

	require.NoError(t, spec.Validate())
	preds := spec.Predecessors()
	assert.ElementsMatch(t, []string{"A", "B"}, preds["J"])
	assert.Empty(t, preds["A"])
	assert.Empty(t, preds["B"])
}

func TestValidateRejectsBrokenSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec *FlowSpec
	}{
		{
			name: "empty id",
			spec: &FlowSpec{Nodes: []string{"A"}, Join: "A"},
		},
		{
			name: "no nodes",
			spec: &FlowSpec{ID: "x"},
		},
		{
			name: "duplicate node",
			spec: &FlowSpec{ID: "x", Nodes: []string{"A", "A"}, Join: "A"},
		},
		{
			name: "join not in node set",
			spec: &FlowSpec{ID: "x", Nodes: []string{"A"}, Join: "Z"},
		},
		{
			name: "edge to unknown node",
			spec: &FlowSpec{ID: "x", Nodes: []string{"A", "B"}, Edges: []Edge{{From: "A", To: "Z"}}, Join: "B"},
		},
		{
			name: "self edge",
			spec: &FlowSpec{ID: "x", Nodes: []string{"A", "B"}, Edges: []Edge{{From: "A", To: "A"}, {From: "A", To: "B"}}, Join: "B"},
		},
		{
			name: "second sink besides the join",
			spec: &FlowSpec{ID: "x", Nodes: []string{"A", "B", "C"}, Edges: []Edge{{From: "A", To: "C"}}, Join: "C"},
		},
		{
			name: "join with outgoing edge",
			spec: &FlowSpec{ID: "x", Nodes: []string{"A", "B"}, Edges: []Edge{{From: "A", To: "B"}, {From: "B", To: "A"}}, Join: "B"},
		},
		{
			name: "cycle",
			spec: &FlowSpec{
				ID:    "x",
				Nodes: []string{"A", "B", "C"},
				Edges: []Edge{{From: "A", To: "B"}, {From: "B", To: "A"}, {From: "B", To: "C"}},
				Join:  "C",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.spec.Validate())
		})
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	specs := r.List()
	require.Len(t, specs, 4)
	assert.Equal(t, FlowKPIReview, specs[0].ID)
	assert.Equal(t, FlowRootCause, specs[1].ID)
	assert.Equal(t, FlowScenario, specs[2].ID)
	assert.Equal(t, FlowTradeOff, specs[3].ID)

	kpi, err := r.Resolve(FlowKPIReview)
	require.NoError(t, err)
	assert.Equal(t, []string{NodeCEO, NodeCFO, NodeCMO, NodeCIO, NodeEvaluator}, kpi.Nodes)
	assert.Equal(t, NodeEvaluator, kpi.Join)

	tradeOff, err := r.Resolve(FlowTradeOff)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{NodeCFO, NodeCMO}, tradeOff.Predecessors()[NodeEvaluator])
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Chain(FlowKPIReview, "Dup", "", "A", "B"))
	assert.Error(t, err)
}

func TestParseOverlayDefaults(t *testing.T) {
	doc := []byte(`
flows:
  - id: margin_deep_dive
    name: Margin Deep Dive
    nodes: [CFO, CIO, Evaluator]
`)
	specs, err := ParseOverlay(doc)
	require.NoError(t, err)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, "Evaluator", spec.Join)
	assert.Equal(t, []Edge{{From: "CFO", To: "CIO"}, {From: "CIO", To: "Evaluator"}}, spec.Edges)
}

func TestParseOverlayRejectsInvalid(t *testing.T) {
	doc := []byte(`
flows:
  - id: broken
    nodes: [A, A]
`)
	_, err := ParseOverlay(doc)
	assert.Error(t, err)
}
