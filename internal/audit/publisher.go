package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TopicProducer publishes serialized entries to the audit topic.
type TopicProducer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Publisher writes audit entries to the trail store and, when a producer is
// configured, mirrors them onto the audit topic. The store write is the
// critical path; topic publishing is best-effort and only logged on failure.
type Publisher struct {
	store    Store
	producer TopicProducer
	topic    string
	logger   *slog.Logger

	inbox chan Entry
	wg    sync.WaitGroup
	once  sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithProducer mirrors entries to the given topic.
func WithProducer(producer TopicProducer, topic string) Option {
	return func(p *Publisher) {
		p.producer = producer
		p.topic = topic
	}
}

// WithAsyncBuffer makes Emit enqueue instead of write synchronously. Entries
// are drained by a background goroutine; Close blocks until the buffer is
// empty.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Entry, size)
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one audit entry. In async mode a full buffer falls back to a
// synchronous write rather than dropping the entry.
func (p *Publisher) Emit(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if p.inbox != nil {
		select {
		case p.inbox <- entry:
			return nil
		default:
		}
	}
	return p.write(ctx, entry)
}

// List returns the trail for one event record.
func (p *Publisher) List(ctx context.Context, eventID string) ([]Entry, error) {
	return p.store.ListByEvent(ctx, eventID)
}

// Close drains any buffered entries and stops the background writer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for entry := range p.inbox {
		if err := p.write(context.Background(), entry); err != nil {
			p.logger.Error("audit write failed",
				"event_id", entry.EventID,
				"action_type", entry.ActionType,
				"error", err,
			)
		}
	}
}

func (p *Publisher) write(ctx context.Context, entry Entry) error {
	if err := p.store.Append(ctx, entry); err != nil {
		return err
	}

	if p.producer != nil {
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := p.producer.Publish(ctx, p.topic, []byte(entry.EventID), payload); err != nil {
			p.logger.ErrorContext(ctx, "audit topic publish failed",
				"topic", p.topic,
				"event_id", entry.EventID,
				"error", err,
			)
		}
	}
	return nil
}
