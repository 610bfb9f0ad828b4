package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

func chainSpec() *entity.WorkflowSpec {
	return &entity.WorkflowSpec{
		ID:   "s",
		Name: "s",
		Nodes: []*entity.WorkflowNode{
			{ID: "in", Kind: valueobject.NodeInput},
			{ID: "a", Kind: valueobject.NodeProcessing, Dependencies: []string{"in"}},
			{ID: "b", Kind: valueobject.NodeProcessing, Dependencies: []string{"in"}},
			{ID: "out", Kind: valueobject.NodeOutput, Dependencies: []string{"a", "b"}},
		},
		Edges: []*entity.WorkflowEdge{
			{From: "in", To: "a"},
			{From: "in", To: "b"},
			{From: "a", To: "out"},
			{From: "b", To: "out"},
		},
	}
}

func TestTopologicalLayersGroupsIndependentNodes(t *testing.T) {
	layers := topologicalLayers(chainSpec())
	require.Len(t, layers, 3)
	assert.Len(t, layers[0], 1)
	assert.Len(t, layers[1], 2)
	assert.Len(t, layers[2], 1)
	assert.Equal(t, "in", layers[0][0].ID)
	assert.Equal(t, "out", layers[2][0].ID)
}

func TestCompilerCachesByStructuralHash(t *testing.T) {
	c := newCompiler()
	spec := chainSpec()
	p1 := c.compile(spec)

	spec2 := chainSpec()
	spec2.ID = "different-id"
	spec2.Name = "different-name"
	p2 := c.compile(spec2)

	assert.Same(t, p1, p2, "structurally identical specs should share a compiled plan")
}

func TestCompilerRecompilesOnStructuralChange(t *testing.T) {
	c := newCompiler()
	p1 := c.compile(chainSpec())

	spec2 := chainSpec()
	spec2.Nodes[1].BestEffort = true
	p2 := c.compile(spec2)

	assert.NotSame(t, p1, p2)
}
