package tool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	domaintool "github.com/qi-prompt/qi-prompt/internal/domain/tool"
)

// Provider adapts Executor/Registry to domain/service.ToolProvider, the
// narrow handle the workflow engine's tool nodes depend on. It does not
// replace Executor; it gives the workflow engine a simpler entrypoint onto
// the same registry and policy.
type Provider struct {
	registry domaintool.Registry
	executor *Executor
	logger   *zap.Logger
}

var _ service.ToolProvider = (*Provider)(nil)

// NewProvider builds a Provider over an already-constructed registry and
// executor, so the workflow engine enforces the same policy and sandbox
// rules as interactive tool calls.
func NewProvider(registry domaintool.Registry, executor *Executor, logger *zap.Logger) *Provider {
	return &Provider{registry: registry, executor: executor, logger: logger}
}

// ListAvailableTools reports the registry's current, policy-filtered set.
func (p *Provider) ListAvailableTools(ctx context.Context) ([]service.ToolDescriptor, error) {
	defs := p.executor.GetToolDefs()
	out := make([]service.ToolDescriptor, 0, len(defs))
	for _, d := range defs {
		t, ok := p.registry.Get(d.Name)
		category := ""
		if ok {
			category = string(t.Kind())
		}
		out = append(out, service.ToolDescriptor{
			Name:        d.Name,
			Category:    category,
			Description: d.Description,
		})
	}
	return out, nil
}

// ExecuteTool runs req.Name through Executor, so a workflow tool node is
// subject to the same policy/sandbox enforcement as an interactive call.
func (p *Provider) ExecuteTool(ctx context.Context, req service.ToolRequest) (*service.ToolResult, error) {
	call := ToolCall{ID: fmt.Sprintf("workflow:%s", req.NodeID), Name: req.Name, Arguments: req.Params}
	res, err := p.executor.Execute(ctx, call)
	if err != nil {
		return nil, err
	}

	errText := ""
	if res.Error != nil {
		errText = res.Error.Error()
	}
	return &service.ToolResult{Output: res.Output, Success: res.Success, Error: errText}, nil
}
