// Package cli implements the three interactive rendering backends:
// readline, rich and hybrid. All three share one Driver, which is the
// only thing that touches the orchestrator's queues. The driver never
// calls the agent loop in-process; it enqueues UserInput/Cancel messages
// and renders whatever the orchestrator publishes back.
package cli

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/application"
	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/queue"
)

// Backend is the contract each rendering frontend implements. Run blocks
// until the user quits or ctx is cancelled.
type Backend interface {
	Run(ctx context.Context, d *Driver) error
}

// Driver is the shared glue between a rendering backend and the
// orchestrator's inbound/outbound queues. It owns no rendering logic of its
// own.
type Driver struct {
	Inbound   *queue.MessageQueue
	Outbound  *queue.MessageQueue
	AppState  *entity.AppState
	Logger    *zap.Logger

	seq uint64
}

// NewDriver builds a Driver over the orchestrator's queues.
func NewDriver(inbound, outbound *queue.MessageQueue, appState *entity.AppState, logger *zap.Logger) *Driver {
	return &Driver{Inbound: inbound, Outbound: outbound, AppState: appState, Logger: logger}
}

func (d *Driver) nextID(prefix string) string {
	n := atomic.AddUint64(&d.seq, 1)
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), n)
}

// Submit enqueues a UserInput message and returns its id, used by callers as
// the correlation id to watch for on the outbound stream.
func (d *Driver) Submit(text string) (string, error) {
	id := d.nextID("in")
	msg, err := entity.NewMessage(id, valueobject.KindUserInput, application.UserInputPayload{Text: text}, valueobject.PriorityNormal)
	if err != nil {
		return "", err
	}
	res := d.Inbound.Enqueue(msg)
	if res.IsErr() {
		return "", res.Error()
	}
	return id, nil
}

// Cancel enqueues a Cancel message. An empty correlationID cancels whatever
// is currently in flight, per section 4.9's double Ctrl-C semantics.
func (d *Driver) Cancel(correlationID string) error {
	id := d.nextID("cancel")
	msg, err := entity.NewMessage(id, valueobject.KindCancel, application.CancelPayload{CorrelationID: correlationID}, valueobject.PriorityHigh)
	if err != nil {
		return err
	}
	res := d.Inbound.Enqueue(msg)
	if res.IsErr() {
		return res.Error()
	}
	return nil
}

// Messages subscribes to the outbound stream. Only one backend may call this
// at a time; the queue itself enforces single-iteration.
func (d *Driver) Messages(ctx context.Context) (<-chan *entity.Message, error) {
	return d.Outbound.Iterate(ctx)
}

// Shutdown tears down the inbound queue, which unblocks the orchestrator's
// Run loop and lets main.go exit cleanly.
func (d *Driver) Shutdown() {
	d.Inbound.Destroy()
}

