package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

type fakeToolProvider struct {
	success bool
	output  string
	err     error
}

func (f *fakeToolProvider) ListAvailableTools(ctx context.Context) ([]service.ToolDescriptor, error) {
	return nil, nil
}

func (f *fakeToolProvider) ExecuteTool(ctx context.Context, req service.ToolRequest) (*service.ToolResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.ToolResult{Output: f.output, Success: f.success}, nil
}

func drainProgress(ch <-chan service.ProgressTuple) []service.ProgressTuple {
	var tuples []service.ProgressTuple
	for t := range ch {
		tuples = append(tuples, t)
	}
	return tuples
}

func newTestEngine(t *testing.T, tp service.ToolProvider) *Engine {
	t.Helper()
	extractor, err := NewExtractor(nil, zap.NewNop())
	require.NoError(t, err)
	return NewEngine(extractor, tp, nil, 0, zap.NewNop())
}

func TestExecuteRunsSimpleChainToCompletion(t *testing.T) {
	e := newTestEngine(t, nil)
	spec := ruleBasedSkeleton("do something")
	state := &entity.WorkflowState{Input: "do something"}

	ch, err := e.Execute(context.Background(), spec, state)
	require.NoError(t, err)

	tuples := drainProgress(ch)
	require.NotEmpty(t, tuples)
	last := tuples[len(tuples)-1]
	assert.True(t, last.IsComplete)
	assert.Equal(t, 3, state.Metadata.NodesExecuted)
}

func TestExecuteRunsToolNodeSuccessfully(t *testing.T) {
	spec := &entity.WorkflowSpec{
		ID:   "tool-wf",
		Name: "tool-wf",
		Nodes: []*entity.WorkflowNode{
			{ID: "in", Kind: valueobject.NodeInput},
			{ID: "t", Kind: valueobject.NodeTool, RequiredTool: "search", Dependencies: []string{"in"}},
			{ID: "out", Kind: valueobject.NodeOutput, Dependencies: []string{"t"}},
		},
		Edges: []*entity.WorkflowEdge{
			{From: "in", To: "t"},
			{From: "t", To: "out"},
		},
	}
	e := newTestEngine(t, &fakeToolProvider{success: true, output: "result"})
	state := &entity.WorkflowState{Input: "search for x"}

	ch, err := e.Execute(context.Background(), spec, state)
	require.NoError(t, err)
	drainProgress(ch)

	require.Len(t, state.ToolResults, 1)
	assert.True(t, state.ToolResults[0].Success)
	assert.Equal(t, "result", state.Output)
}

func TestExecuteAbortsOnNonBestEffortToolFailure(t *testing.T) {
	spec := &entity.WorkflowSpec{
		ID:   "tool-wf",
		Name: "tool-wf",
		Nodes: []*entity.WorkflowNode{
			{ID: "in", Kind: valueobject.NodeInput},
			{ID: "t", Kind: valueobject.NodeTool, RequiredTool: "search", Dependencies: []string{"in"}},
			{ID: "out", Kind: valueobject.NodeOutput, Dependencies: []string{"t"}},
		},
		Edges: []*entity.WorkflowEdge{
			{From: "in", To: "t"},
			{From: "t", To: "out"},
		},
	}
	e := newTestEngine(t, &fakeToolProvider{success: false, output: "", err: nil})
	state := &entity.WorkflowState{Input: "search for x"}

	ch, err := e.Execute(context.Background(), spec, state)
	require.NoError(t, err)
	drainProgress(ch)

	assert.Equal(t, 1, state.Metadata.NodesSkipped, "output node should be skipped once its tool dependency fails")
	assert.Empty(t, state.Output)
}

func TestExecuteBestEffortToolFailureContinues(t *testing.T) {
	spec := &entity.WorkflowSpec{
		ID:   "tool-wf",
		Name: "tool-wf",
		Nodes: []*entity.WorkflowNode{
			{ID: "in", Kind: valueobject.NodeInput},
			{ID: "t", Kind: valueobject.NodeTool, RequiredTool: "search", Dependencies: []string{"in"}, BestEffort: true},
			{ID: "out", Kind: valueobject.NodeOutput, Dependencies: []string{"t"}},
		},
		Edges: []*entity.WorkflowEdge{
			{From: "in", To: "t"},
			{From: "t", To: "out"},
		},
	}
	e := newTestEngine(t, &fakeToolProvider{success: false})
	state := &entity.WorkflowState{Input: "search for x"}

	ch, err := e.Execute(context.Background(), spec, state)
	require.NoError(t, err)
	drainProgress(ch)

	assert.Equal(t, 2, state.Metadata.NodesExecuted, "input and output nodes both record a step")
	assert.Equal(t, 1, state.Metadata.NodesFailed)
	assert.Equal(t, 0, state.Metadata.NodesSkipped, "best-effort failure should not skip downstream nodes")
}

func TestExecuteCancellationStopsBeforeLaterLayers(t *testing.T) {
	spec := &entity.WorkflowSpec{
		ID:   "wf",
		Name: "wf",
		Nodes: []*entity.WorkflowNode{
			{ID: "in", Kind: valueobject.NodeInput},
			{ID: "p", Kind: valueobject.NodeProcessing, Dependencies: []string{"in"}},
			{ID: "out", Kind: valueobject.NodeOutput, Dependencies: []string{"p"}},
		},
		Edges: []*entity.WorkflowEdge{
			{From: "in", To: "p"},
			{From: "p", To: "out"},
		},
	}
	e := newTestEngine(t, nil)
	state := &entity.WorkflowState{Input: "x"}
	state.Cancel()

	ch, err := e.Execute(context.Background(), spec, state)
	require.NoError(t, err)
	tuples := drainProgress(ch)

	require.Len(t, tuples, 1)
	assert.True(t, tuples[0].IsComplete)
	assert.True(t, state.IsCancelled())
}
