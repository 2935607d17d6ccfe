// Package queue abstracts the at-least-once message queue that delivers file
// lifecycle events to the ingestion consumer. A message stays in flight after
// Receive until it is acknowledged; unacknowledged messages become visible
// again after the queue's visibility timeout and are redelivered. Handlers
// must therefore be idempotent.
package queue

import (
	"context"
	"time"
)

// Message is one delivered queue entry.
type Message struct {
	// ID is the queue-assigned delivery identifier, passed back to Ack.
	ID string

	// Body is the raw message payload.
	Body []byte
}

// Queue is the consumer-side interface over the message queue.
// Implementations must be safe for concurrent use.
type Queue interface {
	// Receive long-polls for up to max messages, waiting at most wait before
	// returning an empty batch. Received messages are invisible to other
	// consumers until acknowledged or until the visibility timeout elapses.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)

	// Ack removes an already-delivered message from the queue. A message that
	// is never acked is redelivered.
	Ack(ctx context.Context, id string) error

	// Close releases any resources held by the queue client.
	Close() error
}
