package context

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExpandReferencesResolvesKnownFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	e := NewExpander(dir, zap.NewNop())
	text, resolved, err := e.ExpandReferences(context.Background(), "look at @main.go please")
	require.NoError(t, err)
	assert.Contains(t, text, "@main.go")
	require.Len(t, resolved, 1)
	assert.Equal(t, "package main\n", resolved[0].Content)
	assert.False(t, resolved[0].Truncated)
}

func TestExpandReferencesMarksUnresolvedInline(t *testing.T) {
	dir := t.TempDir()
	e := NewExpander(dir, zap.NewNop())

	text, resolved, err := e.ExpandReferences(context.Background(), "see @missing.go")
	require.NoError(t, err)
	assert.Contains(t, text, "unresolved")
	assert.Empty(t, resolved)
}

func TestExpandReferencesRejectsEscapeFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	e := NewExpander(dir, zap.NewNop())

	text, resolved, err := e.ExpandReferences(context.Background(), "see @../../etc/passwd")
	require.NoError(t, err)
	assert.Contains(t, text, "unresolved")
	assert.Empty(t, resolved)
}

func TestExpandReferencesTruncatesOversizeFile(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, MaxFileBytes+100)
	for i := range big {
		big[i] = 'a'
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), big, 0644))

	e := NewExpander(dir, zap.NewNop())
	_, resolved, err := e.ExpandReferences(context.Background(), "@big.txt")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].Truncated)
}

func TestExpandReferencesNoReferencesReturnsTextUnchanged(t *testing.T) {
	e := NewExpander(t.TempDir(), zap.NewNop())
	text, resolved, err := e.ExpandReferences(context.Background(), "just a plain message")
	require.NoError(t, err)
	assert.Equal(t, "just a plain message", text)
	assert.Empty(t, resolved)
}
