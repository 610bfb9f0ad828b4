package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
)

func TestAssembleContextNeverExceedsBudget(t *testing.T) {
	a := NewAssembler(t.TempDir(), "", zap.NewNop())

	files := []service.ResolvedFile{
		{Path: "a.go", Content: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{Path: "b.go", Content: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
	}

	out, err := a.AssembleContext(context.Background(), "refactor the function", files, nil, 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, out.EstimatedTokens, 5)
	assert.True(t, out.Truncated)
}

func TestAssembleContextLabelsEveryFragmentWithSource(t *testing.T) {
	a := NewAssembler(t.TempDir(), "", zap.NewNop())
	files := []service.ResolvedFile{{Path: "a.go", Content: "short"}}

	out, err := a.AssembleContext(context.Background(), "general question", files, nil, 1000)
	require.NoError(t, err)
	for _, f := range out.Fragments {
		assert.NotEmpty(t, f.Source)
	}
}

func TestAssembleContextChoosesHierarchicalForCodingQuery(t *testing.T) {
	a := NewAssembler(t.TempDir(), "", zap.NewNop())
	out, err := a.AssembleContext(context.Background(), "refactor the parser function", nil, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, service.StrategyHierarchical, out.Strategy)
}

func TestAssembleContextChoosesThematicForComparisonQuery(t *testing.T) {
	a := NewAssembler(t.TempDir(), "", zap.NewNop())
	out, err := a.AssembleContext(context.Background(), "compare approach A versus approach B", nil, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, service.StrategyThematic, out.Strategy)
}

func TestAssembleContextCapsFragmentsPerSource(t *testing.T) {
	a := NewAssembler(t.TempDir(), "", zap.NewNop())
	var hits []service.RetrievalHit
	for i := 0; i < 10; i++ {
		hits = append(hits, service.RetrievalHit{Source: "same.go", Text: "chunk", Score: float64(10 - i)})
	}

	out, err := a.AssembleContext(context.Background(), "general", nil, hits, 100000)
	require.NoError(t, err)
	count := 0
	for _, f := range out.Fragments {
		if f.Source == "same.go" {
			count++
		}
	}
	assert.LessOrEqual(t, count, perSourceChunkCap)
}
