package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	mu        sync.Mutex
	published [][]byte
	fail      bool
}

func (p *recordingProducer) Publish(_ context.Context, _ string, _, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, value)
	return nil
}

func TestPublisher_SyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), Entry{
		EventID:    "evt-1",
		ActionType: "REGISTER",
		Actor:      "user-1",
	})
	require.NoError(t, err)

	entries, err := pub.List(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "REGISTER", entries[0].ActionType)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), Entry{
		EventID:    "evt-2",
		ActionType: "DECLARE",
		Actor:      "user-1",
	})
	require.NoError(t, err)

	// Wait for async processing
	assert.Eventually(t, func() bool {
		entries, err := store.ListByEvent(context.Background(), "evt-2")
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), Entry{
			EventID:    "evt-3",
			ActionType: "VALIDATE",
			Actor:      "user-1",
		})
		require.NoError(t, err)
	}

	// Close should drain all buffered entries.
	pub.Close()

	entries, err := store.ListByEvent(context.Background(), "evt-3")
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestPublisher_TopicMirrorBestEffort(t *testing.T) {
	store := NewInMemoryStore()
	producer := &recordingProducer{fail: true}
	pub := NewPublisher(store, WithProducer(producer, "civreg.audit"))
	defer pub.Close()

	// A failing broker must not fail the emit; the store write is what counts.
	err := pub.Emit(context.Background(), Entry{EventID: "evt-4", ActionType: "NOTIFY", Actor: "user-1"})
	require.NoError(t, err)

	entries, err := store.ListByEvent(context.Background(), "evt-4")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPublisher_TopicMirrorPublishes(t *testing.T) {
	store := NewInMemoryStore()
	producer := &recordingProducer{}
	pub := NewPublisher(store, WithProducer(producer, "civreg.audit"))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), Entry{EventID: "evt-5", ActionType: "ASSIGN", Actor: "user-1"}))

	producer.mu.Lock()
	defer producer.mu.Unlock()
	require.Len(t, producer.published, 1)
	assert.Contains(t, string(producer.published[0]), `"eventId":"evt-5"`)
}
