package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// bodyField is the stream entry field carrying the message payload.
const bodyField = "body"

// RedisConfig holds connection and delivery parameters for a RedisQueue.
type RedisConfig struct {
	// Addr is the Redis address ("host:port") or a redis:// URL.
	Addr string

	// Password is the optional Redis auth credential.
	Password string

	// DB is the Redis logical database number.
	DB int

	// Stream is the stream key events are published to.
	Stream string

	// Group is the consumer group name. Created on construction if absent.
	Group string

	// Consumer is this process's consumer name within the group.
	Consumer string

	// Visibility is how long a delivered message may stay unacknowledged
	// before it is reclaimed and redelivered. Defaults to 30s.
	Visibility time.Duration
}

// RedisQueue implements Queue on top of a Redis Stream with a consumer group.
// XREADGROUP provides the bounded long-poll, XACK the acknowledge, and
// XAUTOCLAIM re-delivers entries whose consumer went silent — the stream's
// pending-entries list plus the min-idle threshold acts as the visibility
// timeout.
type RedisQueue struct {
	client *redis.Client
	cfg    *RedisConfig
}

// NewRedisQueue connects to Redis, verifies the connection, and ensures the
// stream and consumer group exist.
func NewRedisQueue(ctx context.Context, cfg *RedisConfig) (*RedisQueue, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, fmt.Errorf("queue: redis stream and group are required")
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "contextd"
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 30 * time.Second
	}

	var client *redis.Client
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		opt, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("queue: parse redis URL: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: connect to redis at %s: %w", cfg.Addr, err)
	}

	// MKSTREAM creates the stream alongside the group; BUSYGROUP just means
	// another consumer got there first.
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("queue: create consumer group: %w", err)
	}

	return &RedisQueue{client: client, cfg: cfg}, nil
}

// Receive returns up to max messages: first any entries whose visibility
// timeout has elapsed (redeliveries), then fresh entries, blocking up to wait
// when none are immediately available. A non-positive wait polls without
// blocking.
func (q *RedisQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max <= 0 {
		max = 1
	}

	msgs := make([]Message, 0, max)

	// Reclaim stale pending entries first so redeliveries are not starved by
	// a steady flow of new events.
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.Visibility,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("queue: autoclaim: %w", err)
	}
	for _, m := range claimed {
		msgs = append(msgs, toMessage(m))
	}
	if len(msgs) >= max {
		return msgs, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    int64(max - len(msgs)),
		Block:    readBlock(wait),
	}).Result()
	if err == redis.Nil {
		return msgs, nil // long-poll expired with nothing new
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read group: %w", err)
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			msgs = append(msgs, toMessage(m))
		}
	}
	return msgs, nil
}

// Ack acknowledges the delivery and trims the entry from the stream.
func (q *RedisQueue) Ack(ctx context.Context, id string) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("queue: ack %s: %w", id, err)
	}
	// Best-effort trim; the entry is already out of the pending list.
	_ = q.client.XDel(ctx, q.cfg.Stream, id).Err()
	return nil
}

// Enqueue publishes a message body to the stream. Used by producers and by
// operational tooling; the consumer only Receives and Acks.
func (q *RedisQueue) Enqueue(ctx context.Context, body []byte) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]any{bodyField: body},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// readBlock maps the Receive wait to the XREADGROUP BLOCK argument. Zero
// would mean "block forever" on the wire, violating the bounded long-poll
// contract; a negative value makes go-redis omit BLOCK entirely so the read
// returns immediately.
func readBlock(wait time.Duration) time.Duration {
	if wait <= 0 {
		return -1
	}
	return wait
}

// toMessage converts a stream entry into a Message. Entries without a body
// field produce an empty body, which the consumer rejects as malformed.
func toMessage(m redis.XMessage) Message {
	msg := Message{ID: m.ID}
	if v, ok := m.Values[bodyField].(string); ok {
		msg.Body = []byte(v)
	}
	return msg
}
