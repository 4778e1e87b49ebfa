package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []Notification
}

func (s *fakeSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("gateway timeout")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *fakeSender) remainingFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *fakeSender) delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestRules_DefaultsAndOverrides(t *testing.T) {
	rules := DefaultRules()

	assert.True(t, rules.IsEnabled("birth", "REGISTER"))
	assert.True(t, rules.IsEnabled("death", "DECLARE"))
	assert.False(t, rules.IsEnabled("birth", "VALIDATE"))
	assert.False(t, rules.IsEnabled("birth", "ASSIGN"))

	// Per-event-type entries override the wildcard defaults.
	rules.Enabled["death"] = map[string]bool{"REGISTER": false}
	assert.False(t, rules.IsEnabled("death", "REGISTER"))
	assert.True(t, rules.IsEnabled("birth", "REGISTER"))
}

func TestService_EnqueuesOnlyEnabledTransitions(t *testing.T) {
	outbox := NewMemoryOutbox()
	svc := NewService(DefaultRules(), outbox, slog.Default())

	require.NoError(t, svc.NotifyTransition(context.Background(), "evt-1", "birth", "REGISTER", "B5X7K2M4P"))
	require.NoError(t, svc.NotifyTransition(context.Background(), "evt-1", "birth", "VALIDATE", "B5X7K2M4P"))

	assert.Equal(t, 1, outbox.Len())
}

func TestWorker_DeliversAndRetries(t *testing.T) {
	outbox := NewMemoryOutbox()
	sender := &fakeSender{failures: 1}
	worker := NewWorker(outbox, sender, slog.Default(), time.Millisecond, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	require.NoError(t, outbox.Enqueue(ctx, Notification{ID: "n-1", EventID: "evt-1"}))

	// First attempt fails, fixed backoff, second succeeds.
	assert.Eventually(t, func() bool {
		sent := sender.delivered()
		return len(sent) == 1 && sent[0].Attempts == 1
	}, time.Second, 5*time.Millisecond)
}

type downOutbox struct {
	mu    sync.Mutex
	calls int
}

func (o *downOutbox) Enqueue(context.Context, Notification) error { return nil }

func (o *downOutbox) Dequeue(context.Context) (Notification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return Notification{}, errors.New("queue unavailable")
}

func (o *downOutbox) polls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func TestWorker_BacksOffWhenDequeueFails(t *testing.T) {
	outbox := &downOutbox{}
	worker := NewWorker(outbox, &fakeSender{}, slog.Default(), 25*time.Millisecond, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}

	// Roughly five polls fit in the window at the configured backoff; a hot
	// loop would take thousands.
	assert.GreaterOrEqual(t, outbox.polls(), 2)
	assert.LessOrEqual(t, outbox.polls(), 10)
}

func TestWorker_DropsAfterMaxAttempts(t *testing.T) {
	outbox := NewMemoryOutbox()
	sender := &fakeSender{failures: 10}
	worker := NewWorker(outbox, sender, slog.Default(), time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	require.NoError(t, outbox.Enqueue(ctx, Notification{ID: "n-2", EventID: "evt-2"}))

	// Two failed attempts consume the budget, then the notification is dropped.
	assert.Eventually(t, func() bool {
		return sender.remainingFailures() == 8 && outbox.Len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, sender.delivered())
}
