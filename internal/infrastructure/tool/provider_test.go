package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	domaintool "github.com/qi-prompt/qi-prompt/internal/domain/tool"
)

type stubTool struct {
	name string
	kind domaintool.Kind
	res  *domaintool.Result
	err  error
}

func (s *stubTool) Name() string                             { return s.name }
func (s *stubTool) Description() string                      { return "stub tool" }
func (s *stubTool) Kind() domaintool.Kind                     { return s.kind }
func (s *stubTool) Schema() map[string]interface{}            { return map[string]interface{}{} }
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	return s.res, s.err
}

func newTestProvider(t *testing.T, tools ...*stubTool) *Provider {
	t.Helper()
	registry := domaintool.NewInMemoryRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	executor := NewExecutor(registry, &domaintool.Policy{}, zap.NewNop())
	return NewProvider(registry, executor, zap.NewNop())
}

func TestExecuteToolReturnsSuccess(t *testing.T) {
	p := newTestProvider(t, &stubTool{
		name: "search", kind: domaintool.KindSearch,
		res: &domaintool.Result{Output: "found it", Success: true},
	})

	res, err := p.ExecuteTool(context.Background(), service.ToolRequest{NodeID: "n1", Name: "search"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "found it", res.Output)
}

func TestExecuteToolSurfacesUnknownTool(t *testing.T) {
	p := newTestProvider(t)

	res, err := p.ExecuteTool(context.Background(), service.ToolRequest{NodeID: "n1", Name: "missing"})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestListAvailableToolsReportsCategoryFromKind(t *testing.T) {
	p := newTestProvider(t, &stubTool{name: "search", kind: domaintool.KindSearch, res: &domaintool.Result{Success: true}})

	tools, err := p.ListAvailableTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, string(domaintool.KindSearch), tools[0].Category)
}
