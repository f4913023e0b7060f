package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"evalgo.org/mycelium/internal/metrics"
)

// TargetLocks hands out one writer slot per target graph. Waiters queue in
// arrival order.
type TargetLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewTargetLocks creates an empty lock table.
func NewTargetLocks() *TargetLocks {
	return &TargetLocks{slots: make(map[string]chan struct{})}
}

func (l *TargetLocks) slot(target string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[target]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[target] = ch
	}
	return ch
}

// Acquire blocks until every target is held or ctx is done. Targets are
// taken in sorted order so overlapping callers cannot deadlock. The returned
// release func is safe to call more than once.
func (l *TargetLocks) Acquire(ctx context.Context, targets ...string) (func(), error) {
	ids := uniqueSorted(targets)
	start := time.Now()

	held := make([]chan struct{}, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = held[:0]
	}

	for _, id := range ids {
		ch := l.slot(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	metrics.LockWaited(time.Since(start))

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
