package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service enqueues notifications for enabled transitions. It is called from
// the commit fan-out, so Enqueue must stay cheap and never block on delivery.
type Service struct {
	rules  Rules
	outbox Outbox
	logger *slog.Logger
}

func NewService(rules Rules, outbox Outbox, logger *slog.Logger) *Service {
	return &Service{rules: rules, outbox: outbox, logger: logger}
}

// NotifyTransition queues a notification if the transition is enabled for
// the event type. Returns the enqueue error so the caller can count it;
// disabled transitions are a silent no-op.
func (s *Service) NotifyTransition(ctx context.Context, eventID, eventType, actionType, trackingID string) error {
	if !s.rules.IsEnabled(eventType, actionType) {
		return nil
	}
	return s.outbox.Enqueue(ctx, Notification{
		ID:         uuid.NewString(),
		EventID:    eventID,
		EventType:  eventType,
		ActionType: actionType,
		TrackingID: trackingID,
		CreatedAt:  time.Now().UTC(),
	})
}

// Worker drains the outbox and hands notifications to the Sender. Failed
// deliveries are re-queued after a fixed backoff until MaxAttempts.
type Worker struct {
	outbox      Outbox
	sender      Sender
	logger      *slog.Logger
	backoff     time.Duration
	maxAttempts int
}

func NewWorker(outbox Outbox, sender Sender, logger *slog.Logger, backoff time.Duration, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Worker{
		outbox:      outbox,
		sender:      sender,
		logger:      logger,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// Run delivers until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		n, err := w.outbox.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.ErrorContext(ctx, "notification dequeue failed", "error", err)
			// Back off before re-polling so a down queue is not hammered.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff):
			}
			continue
		}

		if err := w.sender.Send(ctx, n); err != nil {
			n.Attempts++
			if n.Attempts >= w.maxAttempts {
				w.logger.ErrorContext(ctx, "notification dropped after max attempts",
					"notification_id", n.ID,
					"event_id", n.EventID,
					"attempts", n.Attempts,
					"error", err,
				)
				continue
			}
			w.logger.WarnContext(ctx, "notification delivery failed, retrying",
				"notification_id", n.ID,
				"attempt", n.Attempts,
				"error", err,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff):
			}
			if err := w.outbox.Enqueue(ctx, n); err != nil {
				w.logger.ErrorContext(ctx, "notification requeue failed",
					"notification_id", n.ID,
					"error", err,
				)
			}
		}
	}
}
