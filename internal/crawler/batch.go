
package crawler

import (
	"context"
	"sync"
)

// MaxParallel caps the number of concurrent workers.
const MaxParallel = 16

// ClampParallel maps any requested worker count into [1, MaxParallel].
func ClampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxParallel {
		return MaxParallel
	}
	return n
}

// ProcessInBatches runs worker over every item with ClampParallel(parallel)
// goroutines pulling from a shared FIFO queue. It returns once each item has
// been handed to worker exactly once. Cancelling ctx does not drop items;
// workers observe ctx themselves.
func ProcessInBatches[T any](ctx context.Context, items []T, parallel int, worker func(context.Context, T)) {
	queue := make(chan T, len(items))
	for _, it := range items {
		queue <- it
	}
	close(queue)

	n := ClampParallel(parallel)
	if n > len(items) {
		n = len(items)
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range queue {
				worker(ctx, it)
			}
		}()
	}
	wg.Wait()
}

// Gate is a pause/resume switch that workers consult before taking work.
// The zero value is open.
type Gate struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

// Pause closes the gate. It reports false when already paused.
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return false
	}
	g.paused = true
	g.resumed = make(chan struct{})
	return true
}

// Resume opens the gate and releases every waiter. It reports false when the
// gate was not paused.
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resumed)
	return true
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the gate is paused. It returns ctx.Err() if ctx ends
// first.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	ch := g.resumed
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
