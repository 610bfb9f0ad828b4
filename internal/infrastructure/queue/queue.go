// Package queue implements the single-writer, single-reader asynchronous
// message queue described in the data model: priority-ordered at dequeue
// time, TTL-expiring, cancellable by id.
//
// This deliberately does not reuse the shape of a multi-subscriber event
// bus: only one consumer goroutine may ever call Iterate, which is what
// rules out the duplicate-concurrent-handler bug a fan-out design invites.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
	apperrors "github.com/qi-prompt/qi-prompt/pkg/errors"
	"github.com/qi-prompt/qi-prompt/pkg/result"
)

// Stats are best-effort, non-blocking queue counters.
type Stats struct {
	Enqueued uint64
	Dequeued uint64
	Expired  uint64
	Cancelled uint64
	Dropped  uint64 // rejected due to a configured bounded capacity
}

// Config bounds the queue's buffered capacity. Zero means unbounded.
type Config struct {
	Capacity int
}

// item is the heap element: ordered by priority descending, then sequence
// ascending within the same priority.
type item struct {
	msg   *entity.Message
	index int
}

type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	pi, pj := h[i].msg.Priority(), h[j].msg.Priority()
	if pi != pj {
		return pi > pj
	}
	return h[i].msg.Sequence() < h[j].msg.Sequence()
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// MessageQueue is the single-writer, single-reader priority queue.
type MessageQueue struct {
	logger *zap.Logger
	cfg    Config

	mu       sync.Mutex
	cond     *sync.Cond
	h        priorityHeap
	byID     map[string]*item
	seq      uint64
	closed   bool
	iterating bool
	stats    Stats
}

// New constructs an empty queue.
func New(logger *zap.Logger, cfg Config) *MessageQueue {
	q := &MessageQueue{
		logger: logger,
		cfg:    cfg,
		byID:   make(map[string]*item),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue stamps msg with an atomically-assigned sequence number, inserts
// it into the priority-ordered structure, and wakes any waiting reader.
func (q *MessageQueue) Enqueue(msg *entity.Message) result.Result[string] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return result.Err[string](apperrors.NewSystem(apperrors.CodeQueueClosed, "queue is closed"))
	}
	if q.cfg.Capacity > 0 && len(q.h) >= q.cfg.Capacity {
		q.stats.Dropped++
		return result.Err[string](apperrors.NewSystem(apperrors.CodeQueueFull, "queue is at capacity"))
	}

	q.seq++
	stamped := msg.WithSequence(q.seq)
	it := &item{msg: stamped}
	heap.Push(&q.h, it)
	q.byID[stamped.ID()] = it
	q.stats.Enqueued++

	q.cond.Signal()
	return result.Ok(stamped.ID())
}

// Cancel marks a not-yet-dequeued message cancelled by id; the next Iterate
// call skips it. Returns false if the message is unknown (already
// dequeued or never existed).
func (q *MessageQueue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.byID[id]
	if !ok {
		return false
	}
	it.msg.Cancel()
	q.stats.Cancelled++
	return true
}

// Iterate returns a channel delivering messages strictly one at a time in
// priority/sequence order, closing when the queue is destroyed. Only one
// iterator may exist concurrently.
func (q *MessageQueue) Iterate(ctx context.Context) (<-chan *entity.Message, error) {
	q.mu.Lock()
	if q.iterating {
		q.mu.Unlock()
		return nil, apperrors.NewSystem(apperrors.CodeQueueAlreadyIterating, "a consumer is already iterating this queue")
	}
	q.iterating = true
	q.mu.Unlock()

	out := make(chan *entity.Message)
	go q.drive(ctx, out)
	return out, nil
}

func (q *MessageQueue) drive(ctx context.Context, out chan<- *entity.Message) {
	defer close(out)
	defer func() {
		q.mu.Lock()
		q.iterating = false
		q.mu.Unlock()
	}()

	for {
		msg, ok := q.next(ctx)
		if !ok {
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// next blocks until a deliverable message is available, the queue closes,
// or ctx is cancelled. Expired and cancelled messages are dropped silently
// (with a stat bump) without being delivered.
func (q *MessageQueue) next(ctx context.Context) (*entity.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			q.cond.Broadcast()
		case <-stopped:
		}
	}()

	for {
		for len(q.h) > 0 {
			top := q.h[0]
			if top.msg.IsCancelled() {
				heap.Pop(&q.h)
				delete(q.byID, top.msg.ID())
				q.stats.Cancelled++
				continue
			}
			if top.msg.IsExpired(time.Now()) {
				heap.Pop(&q.h)
				delete(q.byID, top.msg.ID())
				q.stats.Expired++
				continue
			}
			heap.Pop(&q.h)
			delete(q.byID, top.msg.ID())
			q.stats.Dequeued++
			return top.msg, true
		}

		if q.closed {
			return nil, false
		}
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
}

// Destroy closes the queue, rejects pending readers, and drops
// un-consumed messages. Idempotent.
func (q *MessageQueue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.h = nil
	q.byID = make(map[string]*item)
	q.cond.Broadcast()
}

// Stats returns a snapshot of the best-effort counters.
func (q *MessageQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Len returns the number of messages currently buffered.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// NewMessage is a small helper producing a ready-to-enqueue message with a
// fresh id, reducing boilerplate at every call site that isn't otherwise
// touching entity directly.
func NewMessage(idFn func() string, kind valueobject.MessageKind, payload interface{}, priority valueobject.Priority) (*entity.Message, error) {
	return entity.NewMessage(idFn(), kind, payload, priority)
}
