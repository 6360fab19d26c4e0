package cache

import (
	"sync"
	"time"
)

// LRU is a fixed-capacity in-process cache. Entries expire after the ttl
// given at construction; the least recently read entry is evicted first.
type LRU[V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	index  map[string]*lruNode[V]
	head   lruNode[V] // sentinel; head.next is the most recent
	hits   int64
	misses int64
}

type lruNode[V any] struct {
	key        string
	value      V
	expiresAt  time.Time
	prev, next *lruNode[V]
}

// NewLRU returns an empty cache holding at most capacity entries.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	l := &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		index:    make(map[string]*lruNode[V], capacity),
	}
	l.head.prev, l.head.next = &l.head, &l.head
	return l
}

func (l *LRU[V]) Get(key string) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.index[key]
	if ok && l.ttl > 0 && l.now().After(n.expiresAt) {
		l.drop(n)
		ok = false
	}
	if !ok {
		l.misses++
		var zero V
		return zero, false
	}

	l.unlink(n)
	l.pushFront(n)
	l.hits++
	return n.value, true
}

// Set inserts or replaces key, refreshing its expiry.
func (l *LRU[V]) Set(key string, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expires := l.now().Add(l.ttl)
	if n, ok := l.index[key]; ok {
		n.value, n.expiresAt = value, expires
		l.unlink(n)
		l.pushFront(n)
		return
	}

	n := &lruNode[V]{key: key, value: value, expiresAt: expires}
	l.index[key] = n
	l.pushFront(n)
	for len(l.index) > l.capacity {
		l.drop(l.head.prev)
	}
}

func (l *LRU[V]) Delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n, ok := l.index[key]; ok {
		l.drop(n)
	}
}

func (l *LRU[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.index)
}

// Stats is a point-in-time view of an LRU's counters.
type Stats struct {
	Items    int   `json:"items"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// HitRate is hits over lookups, 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

func (l *LRU[V]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Items: len(l.index), Capacity: l.capacity, Hits: l.hits, Misses: l.misses}
}

func (l *LRU[V]) pushFront(n *lruNode[V]) {
	n.prev, n.next = &l.head, l.head.next
	l.head.next.prev = n
	l.head.next = n
}

func (l *LRU[V]) unlink(n *lruNode[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

func (l *LRU[V]) drop(n *lruNode[V]) {
	l.unlink(n)
	delete(l.index, n.key)
}
