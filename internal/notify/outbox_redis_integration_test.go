//go:build integration

package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civreg/internal/notify"
	"civreg/pkg/testutil/containers"
)

type RedisOutboxSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	outbox *notify.RedisOutbox
}

func TestRedisOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisOutboxSuite))
}

func (s *RedisOutboxSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.outbox = notify.NewRedisOutbox(s.redis.Client, "civreg:notify:test")
}

func (s *RedisOutboxSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisOutboxSuite) TestFIFORoundTrip() {
	ctx := context.Background()

	for _, id := range []string{"n-1", "n-2", "n-3"} {
		s.Require().NoError(s.outbox.Enqueue(ctx, notify.Notification{
			ID:         id,
			EventID:    "evt-1",
			ActionType: "REGISTER",
			TrackingID: "B1A2B3C4D",
		}))
	}

	for _, want := range []string{"n-1", "n-2", "n-3"} {
		got, err := s.outbox.Dequeue(ctx)
		s.Require().NoError(err)
		s.Equal(want, got.ID)
		s.Equal("evt-1", got.EventID)
	}
}

func (s *RedisOutboxSuite) TestDequeueBlocksUntilEnqueue() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan notify.Notification, 1)
	go func() {
		n, err := s.outbox.Dequeue(ctx)
		if err == nil {
			done <- n
		}
	}()

	time.Sleep(100 * time.Millisecond)
	s.Require().NoError(s.outbox.Enqueue(ctx, notify.Notification{ID: "n-late"}))

	select {
	case n := <-done:
		s.Equal("n-late", n.ID)
	case <-ctx.Done():
		s.Fail("dequeue never returned the enqueued notification")
	}
}

func (s *RedisOutboxSuite) TestDequeueHonorsCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.outbox.Dequeue(ctx)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		s.Require().ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.Fail("dequeue did not observe cancellation")
	}
}
