// Package consumer drives the queue-to-index half of the system: it polls
// the message queue for file lifecycle events, routes each event through the
// ingestion pipeline, and acknowledges a message only after its handler has
// fully succeeded. Delivery is at-least-once — a message whose handler fails
// transiently is simply left unacked and redelivered after the queue's
// visibility timeout, which is safe because every handler is idempotent.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/notely-ai/contextd/internal/catalog"
	"github.com/notely-ai/contextd/internal/ingest"
	"github.com/notely-ai/contextd/internal/queue"
)

// Config holds the poll-loop tuning parameters.
type Config struct {
	// BatchSize is the maximum number of messages received per round.
	// Defaults to 10.
	BatchSize int

	// ReceiveWait is the long-poll bound passed to the queue per round.
	// Defaults to 10s.
	ReceiveWait time.Duration

	// PollRate caps receive rounds per second so an empty or erroring queue
	// is not hammered. Defaults to 1 round/second.
	PollRate float64

	// HandlerTimeout bounds the processing of a single message so a stuck
	// backend cannot wedge the consumer; on expiry the message is treated as
	// a transient failure and redelivered. Defaults to 2m.
	HandlerTimeout time.Duration
}

// Consumer owns the poll loop. Construct with New, run with Run.
type Consumer struct {
	// q is the event source.
	q queue.Queue

	// pipeline applies create/update/delete semantics to the vector index.
	pipeline *ingest.Pipeline

	// files receives per-file terminal status reports. May be nil, in which
	// case status reporting is skipped — it is a notification, not a
	// correctness requirement.
	files catalog.FileCatalog

	// cfg holds the resolved loop parameters.
	cfg *Config

	// limiter paces receive rounds.
	limiter *rate.Limiter

	// metrics holds the Prometheus instruments for this consumer.
	metrics *consumerMetrics

	// log is the structured logger.
	log *slog.Logger
}

// New constructs a Consumer. reg receives the consumer's Prometheus metrics;
// pass a fresh registry in tests.
func New(q queue.Queue, pipeline *ingest.Pipeline, files catalog.FileCatalog, cfg *Config, reg prometheus.Registerer, log *slog.Logger) (*Consumer, error) {
	if q == nil {
		return nil, fmt.Errorf("consumer: queue must not be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("consumer: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ReceiveWait <= 0 {
		cfg.ReceiveWait = 10 * time.Second
	}
	if cfg.PollRate <= 0 {
		cfg.PollRate = 1
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 2 * time.Minute
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = slog.Default()
	}

	return &Consumer{
		q:        q,
		pipeline: pipeline,
		files:    files,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PollRate), 1),
		metrics:  newConsumerMetrics(reg),
		log:      log,
	}, nil
}

// Run polls the queue until ctx is cancelled. Cancellation is cooperative:
// the batch in flight when the stop signal arrives is processed to
// completion before Run returns, and anything unacknowledged at that point
// simply becomes visible again for the next consumer.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer: polling started",
		slog.Int("batch_size", c.cfg.BatchSize),
		slog.Duration("receive_wait", c.cfg.ReceiveWait),
	)

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			break // ctx cancelled while pacing
		}

		msgs, err := c.q.Receive(ctx, c.cfg.BatchSize, c.cfg.ReceiveWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.metrics.receiveErrorsTotal.Inc()
			c.log.Error("consumer: receive failed", slog.String("error", err.Error()))
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}

		if ctx.Err() != nil {
			break
		}
	}

	c.log.Info("consumer: polling stopped")
	return nil
}

// handle walks one message through parse → route → acknowledge. Messages run
// on a context detached from the loop's cancellation (bounded by
// HandlerTimeout) so a stop signal lets in-flight work finish cleanly.
func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.HandlerTimeout)
	defer cancel()

	ev, err := ParseFileEvent(msg.Body)
	if err != nil {
		// Structurally invalid: retrying can never succeed. Ack and drop.
		c.log.Warn("consumer: dropping invalid message",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		c.metrics.eventsTotal.WithLabelValues("invalid", outcomeDropped).Inc()
		c.ack(hctx, msg.ID)
		return
	}

	start := time.Now()
	err = c.route(hctx, ev)
	c.metrics.eventDurationSeconds.WithLabelValues(ev.Type.String()).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.eventsTotal.WithLabelValues(ev.Type.String(), outcomeOK).Inc()
		c.reportStatus(hctx, ev, catalog.StatusCompleted)
		c.ack(hctx, msg.ID)

	case isTerminal(err):
		c.log.Warn("consumer: dropping event after validation failure",
			slog.String("message_id", msg.ID),
			slog.String("type", ev.Type.String()),
			slog.Int64("file_id", ev.FileID),
			slog.String("error", err.Error()),
		)
		c.metrics.eventsTotal.WithLabelValues(ev.Type.String(), outcomeDropped).Inc()
		c.reportStatus(hctx, ev, catalog.StatusFailed)
		c.ack(hctx, msg.ID)

	default:
		// Transient: leave unacked so the queue redelivers after the
		// visibility timeout.
		c.log.Error("consumer: event failed, leaving for redelivery",
			slog.String("message_id", msg.ID),
			slog.String("type", ev.Type.String()),
			slog.Int64("file_id", ev.FileID),
			slog.String("error", err.Error()),
		)
		c.metrics.eventsTotal.WithLabelValues(ev.Type.String(), outcomeRetry).Inc()
		c.reportStatus(hctx, ev, catalog.StatusFailed)
	}
}

// route dispatches a parsed event to its pipeline handler. The switch is
// exhaustive over the closed EventType set — unknown tags never reach here,
// ParseFileEvent rejects them at the boundary.
func (c *Consumer) route(ctx context.Context, ev FileEvent) error {
	ref := ingest.FileRef{
		WorkspaceID: ev.WorkspaceID,
		FileID:      ev.FileID,
		StorageKey:  ev.StorageKey,
		FileName:    c.fileName(ctx, ev.FileID),
	}

	switch ev.Type {
	case EventCreate:
		created, err := c.pipeline.Create(ctx, ref)
		if err != nil {
			return err
		}
		c.metrics.chunksUpsertedTotal.Add(float64(created))
		return nil

	case EventUpdate:
		deleted, created, err := c.pipeline.Update(ctx, ref)
		c.metrics.chunksDeletedTotal.Add(float64(deleted))
		if err != nil {
			return err
		}
		c.metrics.chunksUpsertedTotal.Add(float64(created))
		return nil

	case EventDelete:
		deleted, err := c.pipeline.Delete(ctx, ev.WorkspaceID, ev.FileID)
		if err != nil {
			return err
		}
		c.metrics.chunksDeletedTotal.Add(float64(deleted))
		return nil
	}

	// Unreachable: EventType is closed and parsed at the boundary.
	return fmt.Errorf("%w: %v", ErrUnknownEventType, ev.Type)
}

// fileName resolves the display name for a file from the catalog. An empty
// result makes the pipeline fall back to the storage key's base name.
func (c *Consumer) fileName(ctx context.Context, fileID int64) string {
	if c.files == nil {
		return ""
	}
	f, err := c.files.Get(ctx, fileID)
	if err != nil {
		return ""
	}
	return f.Name
}

// reportStatus records the terminal ingestion status for create/update
// events. Failures are logged, never escalated — the vector index, not the
// catalog, is the source of truth.
func (c *Consumer) reportStatus(ctx context.Context, ev FileEvent, status catalog.Status) {
	if c.files == nil || ev.Type == EventDelete {
		return
	}
	if err := c.files.SetStatus(ctx, ev.FileID, status); err != nil {
		c.log.Error("consumer: status report failed",
			slog.Int64("file_id", ev.FileID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

// ack removes a fully handled message from the queue. An ack failure is
// logged and tolerated: the message will be redelivered and the idempotent
// handler will make the redundant pass a no-op.
func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.q.Ack(ctx, id); err != nil {
		c.log.Error("consumer: ack failed", slog.String("message_id", id), slog.String("error", err.Error()))
	}
}
