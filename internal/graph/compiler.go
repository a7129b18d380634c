package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

// NodeExecutor runs one node against the current execution state and
// returns the (possibly mutated) successor state.
type NodeExecutor func(ctx context.Context, state map[string]interface{}) (map[string]interface{}, error)

// ExecutorFactory builds a NodeExecutor closure for one node, scoped to a
// single execution id. Mirrors the teacher's (node, execution_id) -> fn(state)
// contract.
type ExecutorFactory func(node *Node, executionID string) (NodeExecutor, error)

// Registry maps a node's type string to the factory that knows how to build
// its executor. Unknown types are a fatal compilation error.
type Registry map[string]ExecutorFactory

// ConditionEvaluator evaluates a routing condition against execution state.
// exprlang.ConditionEvaluator satisfies this without any import back into
// this package.
type ConditionEvaluator interface {
	Evaluate(expr string, state, input map[string]interface{}) (bool, error)
}

// Compiled is a workflow graph ready to drive: one executor per node plus a
// routing table resolved once at compile time. DefaultMaxSteps bounds
// traversal of graphs that contain back-edges, since the compiler accepts
// them structurally rather than rejecting cycles outright.
type Compiled struct {
	Entry         string
	Terminal      string
	Executors     map[string]NodeExecutor
	NodeTypes     map[string]string
	NodeLabels    map[string]string
	edgesBySource map[string][]Edge
}

// DefaultMaxSteps bounds how many node transitions one execution may take
// before the runtime aborts it as failed. A forward DAG of any realistic
// size finishes in far fewer steps; this only fires against an unbounded
// back-edge loop.
const DefaultMaxSteps = 10000

// Compile builds node executors from registry and a routing table from doc,
// scoped to executionID. Node ids referenced by edges must exist in nodes;
// a node whose type has no registered factory is a fatal compile error.
func Compile(doc *Document, registry Registry, executionID string) (*Compiled, error) {
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("workflow graph has no nodes")
	}

	byID := make(map[string]*Node, len(doc.Nodes))
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		byID[n.ID] = n
	}

	for _, e := range doc.Edges {
		if _, ok := byID[e.Source]; !ok {
			return nil, fmt.Errorf("edge references unknown source node %q", e.Source)
		}
		if _, ok := byID[e.Target]; !ok {
			return nil, fmt.Errorf("edge references unknown target node %q", e.Target)
		}
	}

	c := &Compiled{
		Entry:         doc.Nodes[0].ID,
		Terminal:      doc.Nodes[len(doc.Nodes)-1].ID,
		Executors:     make(map[string]NodeExecutor, len(doc.Nodes)),
		NodeTypes:     make(map[string]string, len(doc.Nodes)),
		NodeLabels:    make(map[string]string, len(doc.Nodes)),
		edgesBySource: make(map[string][]Edge),
	}

	for _, n := range doc.Nodes {
		factory, ok := registry[n.Type]
		if !ok {
			return nil, fmt.Errorf("unknown node type %q for node %q", n.Type, n.ID)
		}
		exec, err := factory(byID[n.ID], executionID)
		if err != nil {
			return nil, fmt.Errorf("failed to build executor for node %q: %w", n.ID, err)
		}
		c.Executors[n.ID] = exec
		c.NodeTypes[n.ID] = n.Type
		c.NodeLabels[n.ID] = labelOf(n)
	}

	for _, e := range doc.Edges {
		c.edgesBySource[e.Source] = append(c.edgesBySource[e.Source], e)
	}

	return c, nil
}

func labelOf(n *Node) string {
	var data map[string]interface{}
	if err := json.Unmarshal(n.Data, &data); err == nil {
		if label, ok := data["label"].(string); ok && label != "" {
			return label
		}
	}
	return n.ID
}

// Next resolves the successor of sourceID given the current state. Per
// source, if any outgoing edge carries a condition, the first edge (in
// document order) whose condition evaluates true wins; failing that, the
// first unconditional edge wins; failing that, there is no successor. A
// source with no conditioned edges at all takes its first outgoing edge.
// A condition evaluation error is treated as false for that edge, never
// propagated.
func (c *Compiled) Next(eval ConditionEvaluator, sourceID string, state map[string]interface{}) (string, bool) {
	edges := c.edgesBySource[sourceID]
	if len(edges) == 0 {
		return "", false
	}

	hasCondition := false
	for _, e := range edges {
		if e.Condition != "" {
			hasCondition = true
			break
		}
	}
	if !hasCondition {
		return edges[0].Target, true
	}

	input, _ := asInput(state)
	for _, e := range edges {
		if e.Condition == "" {
			continue
		}
		ok, err := eval.Evaluate(e.Condition, state, input)
		if err != nil {
			continue
		}
		if ok {
			return e.Target, true
		}
	}
	for _, e := range edges {
		if e.Condition == "" {
			return e.Target, true
		}
	}
	return "", false
}

func asInput(state map[string]interface{}) (map[string]interface{}, bool) {
	raw, ok := state["input"]
	if !ok {
		return map[string]interface{}{}, false
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, false
	}
	return m, true
}
