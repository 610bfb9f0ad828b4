package entity

import "github.com/qi-prompt/qi-prompt/internal/domain/valueobject"

// WorkflowNode is one vertex of a WorkflowSpec's directed acyclic graph.
type WorkflowNode struct {
	ID           string
	Kind         valueobject.NodeKind
	Parameters   map[string]interface{}
	RequiredTool string
	Dependencies []string
	BestEffort   bool
	RetryCount   int
}

// WorkflowEdge is a directed edge with an optional condition expression,
// evaluated against WorkflowState by a decision node. The workflow engine
// does not skip an edge's target when its condition is false.
type WorkflowEdge struct {
	From      string
	To        string
	Condition string
}

// WorkflowSpec is a directed acyclic graph of typed nodes extracted from
// natural language (or a rule-based fallback skeleton).
type WorkflowSpec struct {
	ID    string
	Name  string
	Nodes []*WorkflowNode
	Edges []*WorkflowEdge
}

// NodeByID returns the node with the given id, if present.
func (s *WorkflowSpec) NodeByID(id string) (*WorkflowNode, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Validate enforces the invariants from the data model: every edge
// references existing nodes, the graph has no cycles, every non-input node
// is reachable from some input node, and every non-output node reaches at
// least one output. It also rejects an empty graph or a graph with no input
// node.
func (s *WorkflowSpec) Validate() error {
	if len(s.Nodes) == 0 {
		return ErrInvalidWorkflowSpec
	}

	ids := make(map[string]bool, len(s.Nodes))
	var inputs, outputs []string
	for _, n := range s.Nodes {
		if ids[n.ID] {
			return ErrInvalidWorkflowSpec
		}
		ids[n.ID] = true
		if !n.Kind.IsValid() {
			return ErrInvalidWorkflowSpec
		}
		if n.Kind == valueobject.NodeInput {
			inputs = append(inputs, n.ID)
		}
		if n.Kind == valueobject.NodeOutput {
			outputs = append(outputs, n.ID)
		}
	}
	if len(inputs) != 1 {
		return ErrInvalidWorkflowSpec
	}
	if len(outputs) == 0 {
		return ErrInvalidWorkflowSpec
	}

	forward := make(map[string][]string, len(s.Nodes))
	backward := make(map[string][]string, len(s.Nodes))
	for _, e := range s.Edges {
		if !ids[e.From] || !ids[e.To] {
			return ErrDanglingEdge
		}
		forward[e.From] = append(forward[e.From], e.To)
		backward[e.To] = append(backward[e.To], e.From)
	}
	for _, n := range s.Nodes {
		for _, dep := range n.Dependencies {
			if !ids[dep] {
				return ErrDanglingEdge
			}
			forward[dep] = append(forward[dep], n.ID)
			backward[n.ID] = append(backward[n.ID], dep)
		}
	}

	if err := detectCycle(ids, forward); err != nil {
		return err
	}
	if !allReachableFrom(ids, forward, inputs) {
		return ErrInvalidWorkflowSpec
	}
	if !allReachTo(ids, backward, outputs) {
		return ErrInvalidWorkflowSpec
	}
	return nil
}

// detectCycle runs Kahn's algorithm: if fewer than len(ids) nodes can be
// topologically visited, a cycle exists.
func detectCycle(ids map[string]bool, forward map[string][]string) error {
	inDegree := make(map[string]int, len(ids))
	for id := range ids {
		inDegree[id] = 0
	}
	for _, tos := range forward {
		for _, to := range tos {
			inDegree[to]++
		}
	}

	queue := make([]string, 0, len(ids))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, to := range forward[id] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if visited != len(ids) {
		return ErrCyclicWorkflow
	}
	return nil
}

func allReachableFrom(ids map[string]bool, forward map[string][]string, sources []string) bool {
	reached := bfs(forward, sources)
	for id := range ids {
		if !reached[id] {
			return false
		}
	}
	return true
}

func allReachTo(ids map[string]bool, backward map[string][]string, sinks []string) bool {
	reached := bfs(backward, sinks)
	for id := range ids {
		if !reached[id] {
			return false
		}
	}
	return true
}

func bfs(adj map[string][]string, sources []string) map[string]bool {
	visited := make(map[string]bool, len(sources))
	queue := append([]string{}, sources...)
	for _, s := range sources {
		visited[s] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}
