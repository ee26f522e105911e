package cache

import (
	"container/list"
	"errors"
	"strings"
	"sync"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Config configures a Store.
type Config struct {
	// MaxSize is the maximum number of entries held at once.
	// Default: 1000
	MaxSize int

	// TTL is the maximum age of an entry. An entry older than TTL is
	// logically absent even before the sweep removes it.
	// Default: 5 minutes
	TTL time.Duration

	// SweepInterval is how often expired entries are removed in the
	// background. Zero disables the sweep goroutine; expired entries are
	// then only removed lazily on access.
	SweepInterval time.Duration

	// Disabled turns the store into a pass-through: Get always misses
	// and Set is a no-op.
	Disabled bool

	// Sizer estimates the memory footprint of a value. Optional; when
	// nil a cheap type-based heuristic is used. The estimate feeds
	// Stats, not eviction, which is strictly count-bounded.
	Sizer func(value any) int

	// OnAccess is invoked with the outcome of every Get on an enabled
	// store. Optional. It runs outside the store lock, so it may call
	// back into the store.
	OnAccess func(hit bool)
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	SizeBytes int64
	HitRate   float64
}

type entry[V any] struct {
	key            string
	value          V
	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
	sizeEstimate   int
}

// Store is a bounded LRU cache with per-entry TTL.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Bound: len(entries) <= MaxSize after every mutating call returns.
// - Recency: Get and Set mark the entry most-recently-used.
type Store[V any] struct {
	config Config

	mu        sync.Mutex
	ll        *list.List // front is most-recently-used
	items     map[string]*list.Element
	hits      int64
	misses    int64
	evictions int64
	sizeBytes int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a Store and starts its sweep goroutine when a sweep
// interval is configured. Call Close to stop the sweep.
func NewStore[V any](config Config) *Store[V] {
	// Apply defaults
	if config.MaxSize <= 0 {
		config.MaxSize = 1000
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}

	s := &Store[V]{
		config: config,
		ll:     list.New(),
		items:  make(map[string]*list.Element),
		done:   make(chan struct{}),
	}

	if !config.Disabled && config.SweepInterval > 0 {
		go s.sweepLoop()
	}

	return s
}

// Get retrieves a value. An expired entry counts as a miss and is removed.
// A hit promotes the entry to most-recently-used.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	if s.config.Disabled {
		return zero, false
	}

	value, hit := s.lookup(key)
	if s.config.OnAccess != nil {
		s.config.OnAccess(hit)
	}
	return value, hit
}

func (s *Store[V]) lookup(key string) (V, bool) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.misses++
		return zero, false
	}

	ent := el.Value.(*entry[V])
	if s.expiredLocked(ent, time.Now()) {
		s.removeLocked(el, ent)
		s.misses++
		return zero, false
	}

	ent.accessCount++
	ent.lastAccessedAt = time.Now()
	s.ll.MoveToFront(el)
	s.hits++
	return ent.value, true
}

// Set stores a value as the most-recently-used entry, evicting
// least-recently-used entries first when the store is full.
func (s *Store[V]) Set(key string, value V) {
	if s.config.Disabled {
		return
	}

	size := s.estimate(value)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		ent := el.Value.(*entry[V])
		s.sizeBytes += int64(size - ent.sizeEstimate)
		ent.value = value
		ent.createdAt = now
		ent.lastAccessedAt = now
		ent.sizeEstimate = size
		s.ll.MoveToFront(el)
		return
	}

	// Evict before inserting so the bound holds at all times.
	for s.ll.Len() >= s.config.MaxSize {
		back := s.ll.Back()
		if back == nil {
			break
		}
		s.removeLocked(back, back.Value.(*entry[V]))
		s.evictions++
	}

	ent := &entry[V]{
		key:            key,
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
		sizeEstimate:   size,
	}
	s.items[key] = s.ll.PushFront(ent)
	s.sizeBytes += int64(size)
}

// Has reports whether key holds an unexpired entry. It does not promote
// the entry or touch the hit/miss counters.
func (s *Store[V]) Has(key string) bool {
	if s.config.Disabled {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	return !s.expiredLocked(el.Value.(*entry[V]), time.Now())
}

// Delete removes key. Returns true if an entry was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	s.removeLocked(el, el.Value.(*entry[V]))
	return true
}

// Clear removes all entries. Counters are kept.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ll.Init()
	s.items = make(map[string]*list.Element)
	s.sizeBytes = 0
}

// Len returns the number of physically present entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Stats returns a snapshot of store counters.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	rate := 0.0
	if total > 0 {
		rate = float64(s.hits) / float64(total)
	}

	return Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Size:      s.ll.Len(),
		SizeBytes: s.sizeBytes,
		HitRate:   rate,
	}
}

// GetOrCompute returns the cached value for key, computing and storing it
// on a miss. Compute errors are returned without caching.
func (s *Store[V]) GetOrCompute(key string, compute func() (V, error)) (V, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return v, err
	}
	s.Set(key, v)
	return v, nil
}

// Close stops the background sweep. Idempotent.
func (s *Store[V]) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Sweep removes every expired entry now. It is called periodically by the
// sweep goroutine and is exported so tests and hosts can drive it
// deterministically. Returns the number of entries removed.
func (s *Store[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0

	var next *list.Element
	for el := s.ll.Front(); el != nil; el = next {
		next = el.Next()
		ent, ok := el.Value.(*entry[V])
		if !ok {
			// Malformed element: drop it and keep sweeping.
			s.ll.Remove(el)
			continue
		}
		if s.expiredLocked(ent, now) {
			s.removeLocked(el, ent)
			removed++
		}
	}
	return removed
}

func (s *Store[V]) sweepLoop() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}

func (s *Store[V]) expiredLocked(ent *entry[V], now time.Time) bool {
	return now.Sub(ent.createdAt) > s.config.TTL
}

func (s *Store[V]) removeLocked(el *list.Element, ent *entry[V]) {
	s.ll.Remove(el)
	delete(s.items, ent.key)
	s.sizeBytes -= int64(ent.sizeEstimate)
}

func (s *Store[V]) estimate(value any) int {
	if s.config.Sizer != nil {
		return s.config.Sizer(value)
	}
	switch v := value.(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	default:
		return 64
	}
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
