package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_ReceiveAndAck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue(time.Minute)
	q.Enqueue([]byte("one"))
	q.Enqueue([]byte("two"))

	msgs, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	if err := q.Ack(ctx, msgs[0].ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	if got := q.Unacked(); got != 1 {
		t.Errorf("unacked: got %d, want 1", got)
	}
}

func TestMemoryQueue_InFlightMessagesAreInvisible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue(time.Minute)
	q.Enqueue([]byte("payload"))

	first, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 message, got %d", len(first))
	}

	// While in flight the message must not be delivered again.
	second, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("in-flight message redelivered: got %d messages", len(second))
	}
}

func TestMemoryQueue_UnackedMessageIsRedelivered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewMemoryQueue(time.Minute)
	q.Enqueue([]byte("payload"))

	first, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 message, got %d", len(first))
	}

	// Simulate the visibility timeout expiring without an ack.
	q.Redeliver()

	second, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected redelivery, got %d messages", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Errorf("redelivered id %q differs from original %q", second[0].ID, first[0].ID)
	}

	if err := q.Ack(ctx, second[0].ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	q.Redeliver()
	third, err := q.Receive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(third) != 0 {
		t.Errorf("acked message must never be redelivered, got %d", len(third))
	}
}

func TestMemoryQueue_AckUnknownID(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(time.Minute)
	if err := q.Ack(context.Background(), "9999-0"); err == nil {
		t.Error("expected error acking unknown message id")
	}
}

func TestMemoryQueue_ReceiveRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Receive(ctx, 1, 0); err == nil {
		t.Error("expected context error from cancelled Receive")
	}
}
