package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

func newTestQueue(t *testing.T) *MessageQueue {
	t.Helper()
	return New(zap.NewNop(), Config{})
}

func mustMessage(t *testing.T, id string, priority valueobject.Priority) *entity.Message {
	t.Helper()
	msg, err := entity.NewMessage(id, valueobject.KindUserInput, id, priority)
	require.NoError(t, err)
	return msg
}

func TestEnqueueDequeueOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1 := q.Enqueue(mustMessage(t, "a", valueobject.PriorityNormal))
	r2 := q.Enqueue(mustMessage(t, "b", valueobject.PriorityNormal))
	require.True(t, r1.IsOk())
	require.True(t, r2.IsOk())

	out, err := q.Iterate(ctx)
	require.NoError(t, err)

	first := <-out
	second := <-out
	assert.Equal(t, "a", first.ID())
	assert.Equal(t, "b", second.ID())
}

func TestPriorityPreemptsAtDequeue(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Enqueue(mustMessage(t, "low", valueobject.PriorityLow))
	q.Enqueue(mustMessage(t, "critical", valueobject.PriorityCritical))

	out, err := q.Iterate(ctx)
	require.NoError(t, err)

	first := <-out
	assert.Equal(t, "critical", first.ID())
}

func TestSecondIteratorFails(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := q.Iterate(ctx)
	require.NoError(t, err)

	_, err2 := q.Iterate(ctx)
	require.Error(t, err2)
}

func TestCancelSkipsMessage(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := q.Enqueue(mustMessage(t, "a", valueobject.PriorityNormal))
	id, _ := r.Value()
	q.Enqueue(mustMessage(t, "b", valueobject.PriorityNormal))

	ok := q.Cancel(id)
	require.True(t, ok)

	out, err := q.Iterate(ctx)
	require.NoError(t, err)

	next := <-out
	assert.Equal(t, "b", next.ID())
}

func TestDestroyIsIdempotentAndRejectsPendingReaders(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := q.Iterate(ctx)
	require.NoError(t, err)

	q.Destroy()
	q.Destroy() // idempotent

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after Destroy")
	}

	r := q.Enqueue(mustMessage(t, "x", valueobject.PriorityNormal))
	require.True(t, r.IsErr())
}

func TestTTLExpiryDropsSilently(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := mustMessage(t, "expired", valueobject.PriorityNormal).WithTTL(time.Millisecond)
	q.Enqueue(msg)
	time.Sleep(5 * time.Millisecond)
	q.Enqueue(mustMessage(t, "fresh", valueobject.PriorityNormal))

	out, err := q.Iterate(ctx)
	require.NoError(t, err)

	next := <-out
	assert.Equal(t, "fresh", next.ID())
	assert.Equal(t, uint64(1), q.Stats().Expired)
}
