package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-prompt/qi-prompt/internal/domain/memory"
)

func TestMemoryRetrieverRoundTrips(t *testing.T) {
	manager := memory.NewMemoryManager(memory.NewInMemoryVectorStore(), memory.NewSimpleEmbedder(32))
	r := NewMemoryRetriever(manager, "session-1")

	require.NoError(t, r.Remember(context.Background(), "the parser lives in internal/infrastructure/context"))

	hits, err := r.Search(context.Background(), "the parser lives in internal/infrastructure/context", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Text, "parser")
}

func TestMemoryRetrieverScopesToSession(t *testing.T) {
	manager := memory.NewMemoryManager(memory.NewInMemoryVectorStore(), memory.NewSimpleEmbedder(32))

	a := NewMemoryRetriever(manager, "session-a")
	b := NewMemoryRetriever(manager, "session-b")
	require.NoError(t, a.Remember(context.Background(), "only visible to session a"))

	hits, err := b.Search(context.Background(), "only visible to session a", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
