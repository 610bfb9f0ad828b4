package service

import (
	"context"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
)

// ProgressTuple is one element of the execution engine's streaming
// progress sequence: one per node entry and one per completion, plus a
// final marker (IsComplete=true, NodeID="").
type ProgressTuple struct {
	NodeID   string
	State    entity.WorkflowState
	IsComplete bool
	Err      error
}

// WorkflowEngine extracts a WorkflowSpec from natural language and executes
// it against a WorkflowState.
type WorkflowEngine interface {
	// Extract builds a spec via structured LLM output bound to the schema,
	// retrying once with a tighter prompt on malformed output, then falling
	// back to a rule-based one-input/one-processing/one-output skeleton.
	// Returns EXTRACTION_FAILED only if even the fallback cannot be built.
	Extract(ctx context.Context, hint string, cc *ClassifierContext) (*entity.WorkflowSpec, error)
	// Execute compiles spec once per unique structural hash and runs it,
	// streaming ProgressTuple values on the returned channel until it
	// closes. Cancellation is cooperative via ctx.
	Execute(ctx context.Context, spec *entity.WorkflowSpec, state *entity.WorkflowState) (<-chan ProgressTuple, error)
}

// ToolProvider is the abstract handle to external tools used only by the
// workflow engine's tool nodes.
type ToolProvider interface {
	ListAvailableTools(ctx context.Context) ([]ToolDescriptor, error)
	ExecuteTool(ctx context.Context, req ToolRequest) (*ToolResult, error)
}

// ToolDescriptor is the static metadata for one tool exposed through a
// ToolProvider.
type ToolDescriptor struct {
	Name             string
	Category         string
	Description      string
	MaxExecutionTime int // seconds
}

// ToolRequest is a single tool invocation request.
type ToolRequest struct {
	NodeID string
	Name   string
	Params map[string]interface{}
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	Output  string
	Success bool
	Error   string
}
