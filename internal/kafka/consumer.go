package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Permanent marks a handler error that no retry can fix. The message is
// logged and committed.
func Permanent(err error) error { return backoff.Permanent(err) }

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int
	log     *slog.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commits are synchronous
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r reader, workers int, log *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, log: log, retryInitial: 200 * time.Millisecond, retryMax: 30 * time.Second}
}

// Start dispatches messages to workers until ctx is done. Each partition is
// owned by one worker, so its offsets are handled and committed in order. A
// failed message is retried with backoff and blocks its partition until it
// succeeds or ctx ends, leaving it uncommitted. Start returns nil on
// cancellation and waits for in-flight handlers before closing the reader.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 1)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := c.handle(ctx, h, m); err != nil {
					return
				}
			}
		}(jobs[i])
	}
	defer wg.Wait()
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds or fails permanently, then commits m. It
// only fails when ctx ends first.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, h(ctx, m)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.ErrorContext(ctx, "handle message failed, retrying",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "wait", wait, "err", err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.log.ErrorContext(ctx, "message dropped",
			"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.ErrorContext(ctx, "commit failed", "offset", m.Offset, "err", err)
	}
	return nil
}
