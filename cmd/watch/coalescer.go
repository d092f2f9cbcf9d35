package watch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Coalescer collapses bursts of change events into one reconcile per user. A
// close produces an insert and a delete within milliseconds; both land in the
// same window. Reconciles run one at a time on the Run goroutine.
type Coalescer struct {
	delay   time.Duration
	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	queue   chan uuid.UUID
	done    chan struct{}
}

func NewCoalescer(delay time.Duration) *Coalescer {
	return &Coalescer{
		delay:   delay,
		pending: make(map[uuid.UUID]struct{}),
		queue:   make(chan uuid.UUID, 64),
		done:    make(chan struct{}),
	}
}

func (c *Coalescer) Notify(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[userID]; ok {
		return
	}
	c.pending[userID] = struct{}{}

	time.AfterFunc(c.delay, func() {
		select {
		case c.queue <- userID:
		case <-c.done:
		}
	})
}

// Run calls fn for every due user until ctx is done.
func (c *Coalescer) Run(ctx context.Context, fn func(ctx context.Context, userID uuid.UUID)) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.queue:
			c.mu.Lock()
			delete(c.pending, id)
			c.mu.Unlock()
			fn(ctx, id)
		}
	}
}
