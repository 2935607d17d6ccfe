package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue with at-least-once delivery semantics,
// used by tests and local development. Messages received but not acked become
// visible again once their visibility timeout elapses.
type MemoryQueue struct {
	mu         sync.Mutex
	visibility time.Duration
	nextID     int
	pending    []*memoryMessage
}

// memoryMessage tracks one enqueued message and its in-flight state.
type memoryMessage struct {
	msg Message
	// invisibleUntil is the time at which an unacked delivery becomes
	// receivable again. Zero means the message has never been delivered.
	invisibleUntil time.Time
	acked          bool
}

// NewMemoryQueue constructs a MemoryQueue with the given visibility timeout.
// A non-positive timeout defaults to 30 seconds.
func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryQueue{visibility: visibility}
}

// Enqueue adds a message body to the queue.
func (q *MemoryQueue) Enqueue(body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.pending = append(q.pending, &memoryMessage{
		msg: Message{ID: fmt.Sprintf("%d-0", q.nextID), Body: body},
	})
}

// Receive returns up to max currently-visible messages. It does not block on
// an empty queue beyond a single check — the wait parameter only bounds an
// initial poll delay, kept minimal so tests run fast.
func (q *MemoryQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	msgs := make([]Message, 0, max)
	for _, m := range q.pending {
		if len(msgs) >= max {
			break
		}
		if m.acked || now.Before(m.invisibleUntil) {
			continue
		}
		m.invisibleUntil = now.Add(q.visibility)
		msgs = append(msgs, m.msg)
	}
	return msgs, nil
}

// Ack marks a message as consumed; it will never be delivered again.
func (q *MemoryQueue) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.pending {
		if m.msg.ID == id {
			m.acked = true
			return nil
		}
	}
	return fmt.Errorf("queue: ack unknown message %s", id)
}

// Redeliver makes every unacked in-flight message immediately visible again,
// simulating an expired visibility timeout. Intended for tests.
func (q *MemoryQueue) Redeliver() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.pending {
		if !m.acked {
			m.invisibleUntil = time.Time{}
		}
	}
}

// Unacked returns the number of messages not yet acknowledged. Intended for tests.
func (q *MemoryQueue) Unacked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, m := range q.pending {
		if !m.acked {
			n++
		}
	}
	return n
}

// Close is a no-op for the in-memory queue.
func (q *MemoryQueue) Close() error { return nil }
