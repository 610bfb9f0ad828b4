package entity

import (
	"time"

	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// Message is the unit that flows through the message queue. Sequence is
// assigned atomically at enqueue time by the queue itself, never by the
// caller; CorrelationID links a response message back to the UserInput
// that produced it.
type Message struct {
	id            string
	sequence      uint64
	priority      valueobject.Priority
	kind          valueobject.MessageKind
	payload       interface{}
	correlationID string
	enqueuedAt    time.Time
	ttl           time.Duration
	cancelled     bool
}

// NewMessage constructs a queue message. Sequence is left zero; the queue
// stamps it atomically on enqueue via WithSequence.
func NewMessage(id string, kind valueobject.MessageKind, payload interface{}, priority valueobject.Priority) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if !kind.IsValid() {
		return nil, ErrInvalidMessageKind
	}
	return &Message{
		id:         id,
		kind:       kind,
		payload:    payload,
		priority:   priority,
		enqueuedAt: time.Now(),
	}, nil
}

func (m *Message) ID() string                    { return m.id }
func (m *Message) Sequence() uint64               { return m.sequence }
func (m *Message) Priority() valueobject.Priority { return m.priority }
func (m *Message) Kind() valueobject.MessageKind  { return m.kind }
func (m *Message) Payload() interface{}           { return m.payload }
func (m *Message) CorrelationID() string          { return m.correlationID }
func (m *Message) EnqueuedAt() time.Time          { return m.enqueuedAt }
func (m *Message) TTL() time.Duration             { return m.ttl }
func (m *Message) IsCancelled() bool              { return m.cancelled }

// WithSequence returns a copy stamped with the queue-assigned sequence
// number. Only the queue itself calls this.
func (m *Message) WithSequence(seq uint64) *Message {
	cp := *m
	cp.sequence = seq
	return &cp
}

// WithCorrelationID returns a copy carrying the given correlation id, used
// when a handler emits a response message linked to its originating request.
func (m *Message) WithCorrelationID(id string) *Message {
	cp := *m
	cp.correlationID = id
	return &cp
}

// WithTTL returns a copy carrying a time-to-live after which the queue may
// silently drop the message if still buffered.
func (m *Message) WithTTL(ttl time.Duration) *Message {
	cp := *m
	cp.ttl = ttl
	return &cp
}

// IsExpired reports whether the message's TTL has elapsed relative to now.
func (m *Message) IsExpired(now time.Time) bool {
	if m.ttl <= 0 {
		return false
	}
	return now.After(m.enqueuedAt.Add(m.ttl))
}

// Cancel marks the message cancelled; the queue skips cancelled messages at
// dequeue time instead of delivering them.
func (m *Message) Cancel() {
	m.cancelled = true
}
