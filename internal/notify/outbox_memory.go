package notify

import (
	"context"
	"sync"
)

// MemoryOutbox is an in-process queue for tests and single-node runs.
type MemoryOutbox struct {
	mu    sync.Mutex
	queue []Notification
	wake  chan struct{}
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{wake: make(chan struct{}, 1)}
}

func (o *MemoryOutbox) Enqueue(_ context.Context, n Notification) error {
	o.mu.Lock()
	o.queue = append(o.queue, n)
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func (o *MemoryOutbox) Dequeue(ctx context.Context) (Notification, error) {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			n := o.queue[0]
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return n, nil
		}
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return Notification{}, ctx.Err()
		case <-o.wake:
		}
	}
}

// Len reports the queue depth. Test helper.
func (o *MemoryOutbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}
