package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
)

// DefaultConcurrentToolCap bounds fan-out of sibling tool/processing nodes
// within one compiled layer.
const DefaultConcurrentToolCap = 10

// Engine implements service.WorkflowEngine: extraction via Extractor, plus
// compiled, checkpointed, streaming execution. The scheduler is grounded
// on domain/agent/dag.go's readyCh/doneCh dispatch loop, generalized from
// spawning agents to running typed workflow nodes.
type Engine struct {
	*Extractor
	compiler         *compiler
	toolProvider     service.ToolProvider
	contextAssembler service.ContextAssembler
	concurrentCap    int
	logger           *zap.Logger
}

var _ service.WorkflowEngine = (*Engine)(nil)

// NewEngine builds an Engine. toolProvider/contextAssembler may be nil;
// tool and reasoning nodes then fail with TOOL_ERROR / a missing-assembler
// error respectively rather than panicking.
func NewEngine(extractor *Extractor, toolProvider service.ToolProvider, contextAssembler service.ContextAssembler, concurrentCap int, logger *zap.Logger) *Engine {
	if concurrentCap <= 0 {
		concurrentCap = DefaultConcurrentToolCap
	}
	return &Engine{
		Extractor:        extractor,
		compiler:         newCompiler(),
		toolProvider:     toolProvider,
		contextAssembler: contextAssembler,
		concurrentCap:    concurrentCap,
		logger:           logger,
	}
}

// Execute implements service.WorkflowEngine. It compiles spec once per
// unique structural hash and streams (nodeId, stateSnapshot, isComplete)
// tuples: two per node (entry, then completion) and one final marker.
func (e *Engine) Execute(ctx context.Context, spec *entity.WorkflowSpec, state *entity.WorkflowState) (<-chan service.ProgressTuple, error) {
	if err := spec.Validate(); err != nil {
		return nil, apperrors.WrapSystem(apperrors.CodeExtractionFailed, "spec failed validation at execute time", err)
	}

	plan := e.compiler.compile(spec)
	out := make(chan service.ProgressTuple)

	go e.run(ctx, spec, plan, state, out)

	return out, nil
}

func (e *Engine) run(ctx context.Context, spec *entity.WorkflowSpec, plan *compiledPlan, state *entity.WorkflowState, out chan<- service.ProgressTuple) {
	defer close(out)

	sem := make(chan struct{}, e.concurrentCap)
	failed := make(map[string]bool)
	skipByDep := make(map[string]bool)

	// A cached plan may have been compiled from an earlier spec of the same
	// shape; run this spec's own nodes (and their Parameters) by id.
	current := make(map[string]*entity.WorkflowNode, len(spec.Nodes))
	for _, n := range spec.Nodes {
		current[n.ID] = n
	}

	for _, layer := range plan.layers {
		if ctx.Err() != nil || state.IsCancelled() {
			state.Cancel()
			out <- service.ProgressTuple{IsComplete: true}
			return
		}

		runnable := make([]*entity.WorkflowNode, 0, len(layer))
		for _, pn := range layer {
			n := current[pn.ID]
			if dependsOnFailed(n, failed) {
				skipByDep[n.ID] = true
				state.RecordSkip(n.ID)
				continue
			}
			runnable = append(runnable, n)
		}

		results := e.runLayer(ctx, spec, runnable, state, sem, out)
		for id, ok := range results {
			if !ok {
				failed[id] = true
			}
		}
	}

	out <- service.ProgressTuple{IsComplete: true}
}

func dependsOnFailed(n *entity.WorkflowNode, failed map[string]bool) bool {
	for _, dep := range n.Dependencies {
		if failed[dep] {
			return true
		}
	}
	return false
}

// runLayer executes parallel-eligible nodes (tool/processing) concurrently
// under the semaphore, and every other kind sequentially in declaration
// order — decision/validation/reasoning/output nodes commonly gate
// control flow and aren't safe to run independently.
func (e *Engine) runLayer(ctx context.Context, spec *entity.WorkflowSpec, nodes []*entity.WorkflowNode, state *entity.WorkflowState, sem chan struct{}, out chan<- service.ProgressTuple) map[string]bool {
	results := make(map[string]bool, len(nodes))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, n := range nodes {
		if n.Kind != valueobject.NodeTool && n.Kind != valueobject.NodeProcessing {
			ok := e.executeNode(ctx, spec, n, state, out)
			mu.Lock()
			results[n.ID] = ok
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(node *entity.WorkflowNode) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				results[node.ID] = false
				mu.Unlock()
				return
			}
			ok := e.executeNode(ctx, spec, node, state, out)
			mu.Lock()
			results[node.ID] = ok
			mu.Unlock()
		}(n)
	}

	wg.Wait()
	return results
}

// executeNode runs one node, emitting an entry tuple before and a
// completion tuple after. Returns false on a non-best-effort failure.
func (e *Engine) executeNode(ctx context.Context, spec *entity.WorkflowSpec, n *entity.WorkflowNode, state *entity.WorkflowState, out chan<- service.ProgressTuple) bool {
	out <- service.ProgressTuple{NodeID: n.ID, State: state.Snapshot()}

	err := e.dispatch(ctx, spec, n, state)

	out <- service.ProgressTuple{NodeID: n.ID, State: state.Snapshot(), Err: err}

	if err != nil {
		if n.BestEffort {
			return true
		}
		return false
	}
	return true
}

func (e *Engine) dispatch(ctx context.Context, spec *entity.WorkflowSpec, n *entity.WorkflowNode, state *entity.WorkflowState) error {
	switch n.Kind {
	case valueobject.NodeInput:
		return e.executeInput(n, state)
	case valueobject.NodeProcessing:
		return e.executeProcessing(n, state)
	case valueobject.NodeTool:
		return e.executeTool(ctx, n, state)
	case valueobject.NodeReasoning:
		return e.executeReasoning(ctx, n, state)
	case valueobject.NodeDecision:
		return e.executeDecision(spec, n, state)
	case valueobject.NodeValidation:
		return e.executeValidation(n, state)
	case valueobject.NodeOutput:
		return e.executeOutput(n, state)
	default:
		return fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

func (e *Engine) executeInput(n *entity.WorkflowNode, state *entity.WorkflowState) error {
	state.RecordStep(n.ID)
	return nil
}

func (e *Engine) executeProcessing(n *entity.WorkflowNode, state *entity.WorkflowState) error {
	state.RecordStep(n.ID)
	return nil
}

func (e *Engine) executeTool(ctx context.Context, n *entity.WorkflowNode, state *entity.WorkflowState) error {
	if e.toolProvider == nil {
		err := apperrors.NewSystem(apperrors.CodeToolError, "no tool provider configured")
		state.Reduce(entity.ToolResult{NodeID: n.ID, ToolName: n.RequiredTool, Success: false, Error: err.Error()})
		return err
	}

	res, err := e.toolProvider.ExecuteTool(ctx, service.ToolRequest{NodeID: n.ID, Name: n.RequiredTool, Params: n.Parameters})
	if err != nil {
		state.Reduce(entity.ToolResult{NodeID: n.ID, ToolName: n.RequiredTool, Success: false, Error: err.Error()})
		return apperrors.WrapSystem(apperrors.CodeToolError, "tool execution failed", err)
	}

	state.Reduce(entity.ToolResult{
		NodeID: n.ID, ToolName: n.RequiredTool,
		Output: res.Output, Success: res.Success, Error: res.Error,
	})
	if !res.Success {
		return apperrors.NewSystem(apperrors.CodeToolError, res.Error)
	}
	return nil
}

func (e *Engine) executeReasoning(ctx context.Context, n *entity.WorkflowNode, state *entity.WorkflowState) error {
	if e.contextAssembler == nil {
		return apperrors.NewSystem(apperrors.CodeInternal, "no context assembler configured for reasoning node")
	}
	text, resolved, err := e.contextAssembler.ExpandReferences(ctx, state.Input)
	if err != nil {
		return err
	}
	assembled, err := e.contextAssembler.AssembleContext(ctx, text, resolved, nil, 8000)
	if err != nil {
		return err
	}

	var prompt string
	for _, f := range assembled.Fragments {
		prompt += f.Text + "\n"
	}
	prompt += text

	if e.Extractor.promptHandler == nil {
		return apperrors.NewSystem(apperrors.CodeInternal, "no prompt handler configured for reasoning node")
	}
	out, err := e.Extractor.promptHandler.Complete(ctx, prompt, service.CompletionOptions{})
	if err != nil {
		return err
	}
	state.SetReasoningOutput(out)
	state.RecordStep(n.ID)
	return nil
}

// executeDecision evaluates the node's outgoing edge conditions in order
// until one holds and records the step. The outcome does not change which
// nodes run: nodes downstream of a false condition are not skipped.
func (e *Engine) executeDecision(spec *entity.WorkflowSpec, n *entity.WorkflowNode, state *entity.WorkflowState) error {
	snap := state.Snapshot()
	for _, edge := range spec.Edges {
		if edge.From != n.ID {
			continue
		}
		if evaluateCondition(edge.Condition, snap) {
			state.RecordStep(n.ID)
			return nil
		}
	}
	state.RecordStep(n.ID)
	return nil
}

func (e *Engine) executeValidation(n *entity.WorkflowNode, state *entity.WorkflowState) error {
	snap := state.Snapshot()
	for key, want := range n.Parameters {
		got := fieldValue(snap, key)
		wantStr := fmt.Sprintf("%v", want)
		if got != wantStr {
			return apperrors.NewBusiness(apperrors.CodeValidationFailed, fmt.Sprintf("validation failed: %s expected %q, got %q", key, wantStr, got))
		}
	}
	state.RecordStep(n.ID)
	return nil
}

func (e *Engine) executeOutput(n *entity.WorkflowNode, state *entity.WorkflowState) error {
	if state.Output == "" {
		if state.ReasoningOutput != "" {
			state.SetOutput(state.ReasoningOutput)
		} else if len(state.ToolResults) > 0 {
			state.SetOutput(state.ToolResults[len(state.ToolResults)-1].Output)
		}
	}
	state.RecordStep(n.ID)
	return nil
}
