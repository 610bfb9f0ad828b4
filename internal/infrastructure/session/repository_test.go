package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/config"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dir := t.TempDir()
	db, err := NewIndexDB(config.SessionConfig{
		IndexDialect: "sqlite",
		IndexDSN:     filepath.Join(dir, "index.db"),
	})
	require.NoError(t, err)

	repo, err := NewRepository(db, filepath.Join(dir, "snapshots"), zap.NewNop())
	require.NoError(t, err)
	return repo
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	snap := entity.SessionSnapshot{
		SessionID:    "s1",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		LastActiveAt: time.Now().UTC().Truncate(time.Second),
		Conversation: []entity.ConversationEntry{
			{Role: "user", Content: "hello", Timestamp: time.Now().UTC().Truncate(time.Second)},
		},
		ContextMemory: map[string]string{"k": "v"},
	}

	require.True(t, repo.Persist(ctx, snap).IsOk())

	loaded := repo.Load(ctx, "s1")
	require.True(t, loaded.IsOk())
	got, _ := loaded.Value()
	assert.Equal(t, snap.SessionID, got.SessionID)
	assert.Equal(t, snap.Conversation, got.Conversation)
	assert.Equal(t, snap.ContextMemory, got.ContextMemory)
}

func TestLoadMissingSessionIsNotAnError(t *testing.T) {
	repo := newTestRepository(t)
	res := repo.Load(context.Background(), "missing")
	assert.True(t, res.IsErr())
	assert.Nil(t, res.Error())
}

func TestListOrdersByLastActiveDesc(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	older := entity.SessionSnapshot{SessionID: "old", CreatedAt: time.Now().UTC(), LastActiveAt: time.Now().UTC().Add(-time.Hour)}
	newer := entity.SessionSnapshot{SessionID: "new", CreatedAt: time.Now().UTC(), LastActiveAt: time.Now().UTC()}
	require.True(t, repo.Persist(ctx, older).IsOk())
	require.True(t, repo.Persist(ctx, newer).IsOk())

	res := repo.List(ctx)
	require.True(t, res.IsOk())
	summaries, _ := res.Value()
	require.Len(t, summaries, 2)
	assert.Equal(t, "new", summaries[0].SessionID)
	assert.Equal(t, "old", summaries[1].SessionID)
}

func TestDeleteRemovesSnapshotAndIndexRow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	snap := entity.SessionSnapshot{SessionID: "gone", CreatedAt: time.Now().UTC(), LastActiveAt: time.Now().UTC()}
	require.True(t, repo.Persist(ctx, snap).IsOk())
	require.True(t, repo.Delete(ctx, "gone").IsOk())

	assert.True(t, repo.Load(ctx, "gone").IsErr())

	res := repo.List(ctx)
	require.True(t, res.IsOk())
	summaries, _ := res.Value()
	assert.Empty(t, summaries)
}
