package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
)

type fakePromptHandler struct {
	responses []string
	calls     int
	err       error
}

func (f *fakePromptHandler) Initialize(ctx context.Context, configPath, schemaPath string) error {
	return nil
}

func (f *fakePromptHandler) Complete(ctx context.Context, text string, opts service.CompletionOptions) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}

func (f *fakePromptHandler) Stream(ctx context.Context, text string, opts service.CompletionOptions) (<-chan service.CompletionDelta, error) {
	return nil, nil
}

func (f *fakePromptHandler) GetAvailableProviders() []service.ProviderInfo { return nil }
func (f *fakePromptHandler) SetActiveProvider(name string) error           { return nil }

const validExtractionJSON = `{
  "name": "build-feature",
  "nodes": [
    {"id": "in", "kind": "input"},
    {"id": "p", "kind": "processing", "dependencies": ["in"]},
    {"id": "out", "kind": "output", "dependencies": ["p"]}
  ],
  "edges": [
    {"from": "in", "to": "p"},
    {"from": "p", "to": "out"}
  ]
}`

func TestExtractUsesValidLLMResponse(t *testing.T) {
	h := &fakePromptHandler{responses: []string{validExtractionJSON}}
	e, err := NewExtractor(h, zap.NewNop())
	require.NoError(t, err)

	spec, err := e.Extract(context.Background(), "build a feature", nil)
	require.NoError(t, err)
	assert.Equal(t, "build-feature", spec.Name)
	assert.Len(t, spec.Nodes, 3)
}

func TestExtractRetriesOnceWithTighterPromptThenSucceeds(t *testing.T) {
	h := &fakePromptHandler{responses: []string{"not json at all", validExtractionJSON}}
	e, err := NewExtractor(h, zap.NewNop())
	require.NoError(t, err)

	spec, err := e.Extract(context.Background(), "build a feature", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, h.calls)
	assert.Equal(t, "build-feature", spec.Name)
}

func TestExtractFallsBackToRuleBasedSkeleton(t *testing.T) {
	h := &fakePromptHandler{responses: []string{"garbage", "still garbage"}}
	e, err := NewExtractor(h, zap.NewNop())
	require.NoError(t, err)

	spec, err := e.Extract(context.Background(), "do something", nil)
	require.NoError(t, err)
	assert.Equal(t, "rule-based-skeleton", spec.Name)
	assert.Len(t, spec.Nodes, 3)
}

func TestExtractWithNilPromptHandlerUsesSkeleton(t *testing.T) {
	e, err := NewExtractor(nil, zap.NewNop())
	require.NoError(t, err)

	spec, err := e.Extract(context.Background(), "do something", nil)
	require.NoError(t, err)
	assert.Equal(t, "rule-based-skeleton", spec.Name)
}
