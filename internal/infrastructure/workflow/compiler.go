package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
)

// compiledPlan is a spec's executable form: nodes grouped into dependency
// layers in topological order. Nodes within a layer have all dependencies
// already satisfied by prior layers and may run in parallel when their
// kind permits it.
type compiledPlan struct {
	layers [][]*entity.WorkflowNode
}

// compiler caches compiledPlans by structural hash so a spec seen before
// (e.g. a re-run of a previously extracted workflow) is compiled once.
type compiler struct {
	mu    sync.Mutex
	cache map[string]*compiledPlan
}

func newCompiler() *compiler {
	return &compiler{cache: make(map[string]*compiledPlan)}
}

func (c *compiler) compile(spec *entity.WorkflowSpec) *compiledPlan {
	hash := structuralHash(spec)

	c.mu.Lock()
	defer c.mu.Unlock()
	if plan, ok := c.cache[hash]; ok {
		return plan
	}

	plan := &compiledPlan{layers: topologicalLayers(spec)}
	c.cache[hash] = plan
	return plan
}

// structuralHash hashes a canonical JSON encoding of a spec's nodes and
// edges, so two specs with identical shape (regardless of extraction
// call) share one compiled plan.
func structuralHash(spec *entity.WorkflowSpec) string {
	type canonicalNode struct {
		ID           string
		Kind         string
		RequiredTool string
		Dependencies []string
		BestEffort   bool
	}
	type canonicalEdge struct {
		From, To, Condition string
	}

	nodes := make([]canonicalNode, 0, len(spec.Nodes))
	for _, n := range spec.Nodes {
		nodes = append(nodes, canonicalNode{
			ID: n.ID, Kind: string(n.Kind), RequiredTool: n.RequiredTool,
			Dependencies: n.Dependencies, BestEffort: n.BestEffort,
		})
	}
	edges := make([]canonicalEdge, 0, len(spec.Edges))
	for _, e := range spec.Edges {
		edges = append(edges, canonicalEdge{From: e.From, To: e.To, Condition: e.Condition})
	}

	data, _ := json.Marshal(struct {
		Nodes []canonicalNode
		Edges []canonicalEdge
	}{nodes, edges})

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// topologicalLayers groups nodes into dependency layers via repeated
// Kahn's-algorithm peeling, following domain/agent/dag.go's
// remaining-dependency-count bookkeeping.
func topologicalLayers(spec *entity.WorkflowSpec) [][]*entity.WorkflowNode {
	remaining := make(map[string]int, len(spec.Nodes))
	dependents := make(map[string][]string, len(spec.Nodes))
	byID := make(map[string]*entity.WorkflowNode, len(spec.Nodes))

	for _, n := range spec.Nodes {
		remaining[n.ID] = len(n.Dependencies)
		byID[n.ID] = n
		for _, dep := range n.Dependencies {
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var layers [][]*entity.WorkflowNode
	for len(byID) > 0 {
		var layer []*entity.WorkflowNode
		var ready []string
		for _, n := range spec.Nodes {
			if _, pending := byID[n.ID]; pending && remaining[n.ID] == 0 {
				layer = append(layer, n)
				ready = append(ready, n.ID)
			}
		}
		if len(layer) == 0 {
			// Spec.Validate() should have already rejected cycles; this is
			// an unreachable defensive branch.
			break
		}
		for _, id := range ready {
			delete(byID, id)
			for _, dep := range dependents[id] {
				remaining[dep]--
			}
		}
		layers = append(layers, layer)
	}
	return layers
}
