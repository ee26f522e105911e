package govern

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// BulkheadConfig configures the per-category bulkhead.
type BulkheadConfig struct {
	// Categories maps each known category to its concurrency ceiling.
	// Every ceiling must be positive. At least one category is required.
	Categories map[string]int
}

type bulkheadWaiter chan struct{}

type categoryState struct {
	max       int
	current   int
	maxActive int
	admitted  int64
	queue     []bulkheadWaiter // FIFO, longest waiter first
}

// Bulkhead bounds how many operations of each category run at once.
// Operations over the ceiling wait in strict arrival order.
type Bulkhead struct {
	mu         sync.Mutex
	categories map[string]*categoryState
}

// NewBulkhead creates a bulkhead for a fixed set of categories.
// The category set is immutable for the lifetime of the bulkhead.
func NewBulkhead(config BulkheadConfig) (*Bulkhead, error) {
	if len(config.Categories) == 0 {
		return nil, fmt.Errorf("govern: bulkhead requires at least one category")
	}

	b := &Bulkhead{categories: make(map[string]*categoryState, len(config.Categories))}
	for name, max := range config.Categories {
		if max <= 0 {
			return nil, fmt.Errorf("govern: category %q has non-positive ceiling %d", name, max)
		}
		b.categories[name] = &categoryState{max: max}
	}
	return b, nil
}

// Acquire takes a slot in category, waiting in FIFO order when the
// category is at its ceiling. Returns ErrUnknownCategory immediately for
// a category the bulkhead was not configured with, or ctx.Err() if the
// context ends while waiting.
func (b *Bulkhead) Acquire(ctx context.Context, category string) error {
	b.mu.Lock()
	st, ok := b.categories[category]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	if st.current < st.max {
		st.current++
		st.admitted++
		if st.current > st.maxActive {
			st.maxActive = st.current
		}
		b.mu.Unlock()
		return nil
	}

	w := make(bulkheadWaiter)
	st.queue = append(st.queue, w)
	b.mu.Unlock()

	select {
	case <-w:
		// Release handed us the slot; current was never decremented.
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		if b.dequeueLocked(st, w) {
			b.mu.Unlock()
			return ctx.Err()
		}
		// The slot was granted between ctx.Done and taking the lock.
		// Give it back so it is released exactly once.
		b.releaseLocked(st)
		b.mu.Unlock()
		return ctx.Err()
	}
}

// Release returns a slot to category. Calling Release for a category
// without a matching Acquire corrupts the count; Do handles the pairing.
func (b *Bulkhead) Release(category string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.categories[category]
	if !ok {
		return
	}
	b.releaseLocked(st)
}

// releaseLocked hands the slot to the longest waiter, or frees it when
// the queue is empty. The slot transfer keeps current unchanged so the
// admitted count stays exact.
func (b *Bulkhead) releaseLocked(st *categoryState) {
	if len(st.queue) > 0 {
		w := st.queue[0]
		st.queue = st.queue[1:]
		st.admitted++
		close(w)
		return
	}
	if st.current > 0 {
		st.current--
	}
}

func (b *Bulkhead) dequeueLocked(st *categoryState, w bulkheadWaiter) bool {
	for i, queued := range st.queue {
		if queued == w {
			st.queue = append(st.queue[:i], st.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Do runs op inside a slot of category. The slot is released exactly
// once, whether op succeeds, fails, or panics.
func (b *Bulkhead) Do(ctx context.Context, category string, op func(context.Context) error) error {
	if err := b.Acquire(ctx, category); err != nil {
		return err
	}
	defer b.Release(category)

	return op(ctx)
}

// Categories returns the configured category names, sorted.
func (b *Bulkhead) Categories() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.categories))
	for name := range b.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryMetrics contains per-category bulkhead statistics.
type CategoryMetrics struct {
	Active        int
	Waiting       int
	MaxActive     int
	MaxConcurrent int
	Admitted      int64
}

// Metrics returns a snapshot of every category's state.
func (b *Bulkhead) Metrics() map[string]CategoryMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]CategoryMetrics, len(b.categories))
	for name, st := range b.categories {
		out[name] = CategoryMetrics{
			Active:        st.current,
			Waiting:       len(st.queue),
			MaxActive:     st.maxActive,
			MaxConcurrent: st.max,
			Admitted:      st.admitted,
		}
	}
	return out
}
