// Package flowspec defines the static catalog of boardroom flows: directed
// acyclic execution graphs of stage nodes converging at a single join node.
// Specs are immutable after registration; adding a flow is a registry-time
// operation, never a runtime one.
package flowspec

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when resolving an unknown flow identifier.
var ErrNotFound = errors.New("flow not found")

// Edge is a sequencing constraint: To may not activate before From is done.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// FlowSpec describes one flow's execution graph. Nodes holds all stage names
// in declaration order; Edges holds the sequencing/parallelism constraints;
// Join names the terminal node where all branches converge for evaluation.
type FlowSpec struct {
	ID          string `json:"flow_id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Nodes       []string `json:"nodes" yaml:"nodes"`
	Edges       []Edge   `json:"edges" yaml:"edges"`
	Join        string   `json:"join" yaml:"join"`
}

// Chain builds a fully sequential spec whose last node is the join.
func Chain(id, name, description string, nodes ...string) *FlowSpec {
	edges := make([]Edge, 0, len(nodes)-1)
	for i := 0; i+1 < len(nodes); i++ {
		edges = append(edges, Edge{From: nodes[i], To: nodes[i+1]})
	}
	return &FlowSpec{
		ID:          id,
		Name:        name,
		Description: description,
		Nodes:       nodes,
		Edges:       edges,
		Join:        nodes[len(nodes)-1],
	}
}

// FanIn builds a spec where all of group run in parallel and converge
// directly on the join node.
func FanIn(id, name, description string, group []string, join string) *FlowSpec {
	nodes := append(append([]string{}, group...), join)
	edges := make([]Edge, 0, len(group))
	for _, n := range group {
		edges = append(edges, Edge{From: n, To: join})
	}
	return &FlowSpec{
		ID:          id,
		Name:        name,
		Description: description,
		Nodes:       nodes,
		Edges:       edges,
		Join:        join,
	}
}

// Predecessors returns, for each node, the set of nodes that must reach a
// terminal state before it may activate.
func (f *FlowSpec) Predecessors() map[string][]string {
	preds := make(map[string][]string, len(f.Nodes))
	for _, n := range f.Nodes {
		preds[n] = nil
	}
	for _, e := range f.Edges {
		preds[e.To] = append(preds[e.To], e.From)
	}
	return preds
}

// Successors returns, for each node, the nodes its handoff is addressed to.
func (f *FlowSpec) Successors() map[string][]string {
	succs := make(map[string][]string, len(f.Nodes))
	for _, n := range f.Nodes {
		succs[n] = nil
	}
	for _, e := range f.Edges {
		succs[e.From] = append(succs[e.From], e.To)
	}
	return succs
}

// Validate checks the structural invariants: non-empty, unique nodes, edges
// between known nodes, a single sink that is the declared join, and no
// cycles. A spec failing validation must never reach the orchestrator.
func (f *FlowSpec) Validate() error {
	if f.ID == "" {
		return errors.New("flow id is empty")
	}
	if len(f.Nodes) == 0 {
		return fmt.Errorf("flow %s has no nodes", f.ID)
	}
	seen := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if n == "" {
			return fmt.Errorf("flow %s has an empty node name", f.ID)
		}
		if seen[n] {
			return fmt.Errorf("flow %s: node %s appears twice", f.ID, n)
		}
		seen[n] = true
	}
	if !seen[f.Join] {
		return fmt.Errorf("flow %s: join node %s is not in the node set", f.ID, f.Join)
	}
	for _, e := range f.Edges {
		if !seen[e.From] || !seen[e.To] {
			return fmt.Errorf("flow %s: edge %s->%s references unknown node", f.ID, e.From, e.To)
		}
		if e.From == e.To {
			return fmt.Errorf("flow %s: self edge on %s", f.ID, e.From)
		}
	}

	succs := f.Successors()
	for _, n := range f.Nodes {
		if n != f.Join && len(succs[n]) == 0 {
			return fmt.Errorf("flow %s: node %s is a dead end (only %s may be terminal)", f.ID, n, f.Join)
		}
	}
	if len(succs[f.Join]) != 0 {
		return fmt.Errorf("flow %s: join node %s has outgoing edges", f.ID, f.Join)
	}

	if err := f.checkAcyclic(); err != nil {
		return err
	}
	return nil
}

// checkAcyclic runs Kahn's algorithm; leftover nodes mean a cycle.
func (f *FlowSpec) checkAcyclic() error {
	indegree := make(map[string]int, len(f.Nodes))
	for _, n := range f.Nodes {
		indegree[n] = 0
	}
	for _, e := range f.Edges {
		indegree[e.To]++
	}
	succs := f.Successors()

	var queue []string
	for _, n := range f.Nodes {
		if indegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, m := range succs[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if visited != len(f.Nodes) {
		return fmt.Errorf("flow %s: graph contains a cycle", f.ID)
	}
	return nil
}

// StageNodes returns the nodes the orchestrator drives through stage
// implementations, i.e. everything except the join.
func (f *FlowSpec) StageNodes() []string {
	out := make([]string, 0, len(f.Nodes)-1)
	for _, n := range f.Nodes {
		if n != f.Join {
			out = append(out, n)
		}
	}
	return out
}
