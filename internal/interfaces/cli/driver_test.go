package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/application"
	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/queue"
)

func newTestDriver(t *testing.T) (*Driver, *queue.MessageQueue, *queue.MessageQueue) {
	t.Helper()
	logger := zap.NewNop()
	in := queue.New(logger, queue.Config{})
	out := queue.New(logger, queue.Config{})
	return NewDriver(in, out, entity.NewAppState(), logger), in, out
}

func TestDriverSubmitEnqueuesUserInput(t *testing.T) {
	d, in, _ := newTestDriver(t)

	id, err := d.Submit("hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, err := in.Iterate(ctx)
	require.NoError(t, err)

	msg := <-ch
	require.NotNil(t, msg)
	assert.Equal(t, valueobject.KindUserInput, msg.Kind())
	payload, ok := msg.Payload().(application.UserInputPayload)
	require.True(t, ok)
	assert.Equal(t, "hello", payload.Text)
}

func TestDriverCancelEnqueuesCancelAtHighPriority(t *testing.T) {
	d, in, _ := newTestDriver(t)

	require.NoError(t, d.Cancel("req-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, err := in.Iterate(ctx)
	require.NoError(t, err)

	msg := <-ch
	require.NotNil(t, msg)
	assert.Equal(t, valueobject.KindCancel, msg.Kind())
	assert.Equal(t, valueobject.PriorityHigh, msg.Priority())
	payload := msg.Payload().(application.CancelPayload)
	assert.Equal(t, "req-1", payload.CorrelationID)
}

func TestDriverMessagesSubscribesToOutbound(t *testing.T) {
	d, _, out := newTestDriver(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, err := d.Messages(ctx)
	require.NoError(t, err)

	msg, err := queue.NewMessage(func() string { return "r1" }, valueobject.KindFinalResult, application.ResultPayload{Text: "done"}, valueobject.PriorityNormal)
	require.NoError(t, err)
	res := out.Enqueue(msg)
	require.True(t, res.IsOk())

	got := <-ch
	require.NotNil(t, got)
	assert.Equal(t, "done", got.Payload().(application.ResultPayload).Text)
}

func TestDriverShutdownUnblocksInbound(t *testing.T) {
	d, in, _ := newTestDriver(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ch, err := in.Iterate(ctx)
	require.NoError(t, err)

	d.Shutdown()
	_, ok := <-ch
	assert.False(t, ok)
}
