package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCoalescer_CollapsesBursts(t *testing.T) {
	c := NewCoalescer(30 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := map[uuid.UUID]int{}
	go c.Run(ctx, func(_ context.Context, id uuid.UUID) {
		mu.Lock()
		calls[id]++
		mu.Unlock()
	})

	a, b := uuid.New(), uuid.New()
	for i := 0; i < 5; i++ {
		c.Notify(a)
	}
	c.Notify(b)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls[a] == 1 && calls[b] == 1
	}, time.Second, 5*time.Millisecond)

	// a later event schedules a fresh run
	c.Notify(a)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls[a] == 2
	}, time.Second, 5*time.Millisecond)
}

func TestCoalescer_StopsWithContext(t *testing.T) {
	c := NewCoalescer(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		c.Run(ctx, func(context.Context, uuid.UUID) {})
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	// timers firing after shutdown must not block
	c.Notify(uuid.New())
	time.Sleep(10 * time.Millisecond)
}
