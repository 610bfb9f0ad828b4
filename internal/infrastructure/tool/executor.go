package tool

import (
	"context"
	"fmt"
	"time"

	domaintool "github.com/qi-prompt/qi-prompt/internal/domain/tool"
	"go.uber.org/zap"
)

// Executor dispatches a ToolCall to the registered domaintool.Tool,
// enforcing the active policy and recording duration/outcome.
type Executor struct {
	registry    domaintool.Registry
	policy      *domaintool.Policy
	logger      *zap.Logger
	execContext domaintool.ExecutionContext
}

// NewExecutor builds an Executor over registry, enforcing policy.
func NewExecutor(
	registry domaintool.Registry,
	policy *domaintool.Policy,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		registry:    registry,
		policy:      policy,
		logger:      logger,
		execContext: domaintool.ExecContextSandbox,
	}
}

// ToolCall is a single tool invocation request.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolResult is a single tool invocation's outcome.
type ToolResult struct {
	ToolCallID string
	Output     string
	Success    bool
	Error      error
}

// ToolDef describes a tool for the LLM-facing function-calling schema.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Execute runs call.Name against the registry, subject to policy.
func (e *Executor) Execute(ctx context.Context, call ToolCall) (*ToolResult, error) {
	startTime := time.Now()

	if !e.policy.IsAllowed(call.Name) {
		e.logger.Warn("Tool execution denied by policy",
			zap.String("tool", call.Name),
		)
		return &ToolResult{
			ToolCallID: call.ID,
			Output:     fmt.Sprintf("Tool '%s' is not allowed by current policy", call.Name),
			Success:    false,
			Error:      fmt.Errorf("tool not allowed: %s", call.Name),
		}, nil
	}

	tool, exists := e.registry.Get(call.Name)
	if !exists {
		e.logger.Warn("Tool not found",
			zap.String("tool", call.Name),
		)
		return &ToolResult{
			ToolCallID: call.ID,
			Output:     fmt.Sprintf("Tool '%s' not found", call.Name),
			Success:    false,
			Error:      fmt.Errorf("tool not found: %s", call.Name),
		}, nil
	}

	e.logger.Info("Executing tool",
		zap.String("tool", call.Name),
		zap.String("call_id", call.ID),
		zap.String("context", e.execContext.String()),
	)

	result, err := tool.Execute(ctx, call.Arguments)

	duration := time.Since(startTime)

	if err != nil {
		e.logger.Error("Tool execution error",
			zap.String("tool", call.Name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return &ToolResult{
			ToolCallID: call.ID,
			Output:     err.Error(),
			Success:    false,
			Error:      err,
		}, nil
	}

	e.logger.Info("Tool execution completed",
		zap.String("tool", call.Name),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
	)

	return &ToolResult{
		ToolCallID: call.ID,
		Output:     result.Output,
		Success:    result.Success,
		Error:      nil,
	}, nil
}

// GetToolDefs returns the policy-filtered tool list as function-call defs.
func (e *Executor) GetToolDefs() []ToolDef {
	enforcer := domaintool.NewPolicyEnforcer(e.policy, e.registry)
	filtered := enforcer.FilteredList()

	defs := make([]ToolDef, len(filtered))
	for i, def := range filtered {
		defs[i] = ToolDef{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		}
	}

	return defs
}

// SetExecutionContext changes the context Execute reports in its logs.
func (e *Executor) SetExecutionContext(ctx domaintool.ExecutionContext) {
	e.execContext = ctx
}

// NeedsApproval reports whether the active policy requires user approval
// before executing a tool.
func (e *Executor) NeedsApproval() bool {
	return e.policy.AskMode
}
