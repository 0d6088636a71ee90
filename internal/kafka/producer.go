package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes to one topic without blocking callers. Messages are
// buffered and handed to an async writer; delivery errors are logged.
type Producer struct {
	w     *kafka.Writer
	inbox chan kafka.Message
	done  chan struct{}
	log   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("topic", topic)
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					log.Error("kafka delivery failed", "messages", len(msgs), "err", err)
				}
			},
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
				log.Error(fmt.Sprintf(msg, args...))
			}),
		},
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   log,
	}
}

func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("kafka write failed", "err", err)
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error("kafka writer close", "err", err)
		}
	}()
}

// Publish enqueues a message. It drops and logs when the buffer is full or
// the producer is closed.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("kafka producer closed, message dropped", "key", string(key))
		return
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
	default:
		p.log.Warn("kafka producer buffer full, message dropped", "key", string(key))
	}
}

// Close flushes buffered messages and waits for the writer to finish. The
// producer must have been started.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}
