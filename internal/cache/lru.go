package cache

import (
	"sync"
	"time"
)

// node is an entry in the recency ring. The ring's sentinel has no key.
type node[T any] struct {
	key        string
	entry      Entry[T]
	prev, next *node[T]
}

// LRUCache keeps at most a fixed number of entries, dropping the least
// recently read or written one first. Entries may also carry a TTL.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*node[T]
	ring     node[T] // ring.next is most recent, ring.prev least recent
	now      func() time.Time
}

var _ Store[int] = (*LRUCache[int])(nil)

func NewLRUCache[T any](capacity int) *LRUCache[T] {
	c := &LRUCache[T]{
		capacity: max(capacity, 1),
		index:    make(map[string]*node[T], capacity),
		now:      time.Now,
	}
	c.ring.prev, c.ring.next = &c.ring, &c.ring
	return c
}

// WithClock replaces the time source.
func (c *LRUCache[T]) WithClock(now func() time.Time) *LRUCache[T] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *LRUCache[T]) unlink(n *node[T]) {
	n.prev.next, n.next.prev = n.next, n.prev
	n.prev, n.next = nil, nil
}

func (c *LRUCache[T]) pushFront(n *node[T]) {
	n.prev, n.next = &c.ring, c.ring.next
	c.ring.next.prev = n
	c.ring.next = n
}

func (c *LRUCache[T]) drop(n *node[T]) {
	c.unlink(n)
	delete(c.index, n.key)
}

func (c *LRUCache[T]) Get(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.index[key]
	if !ok {
		return Entry[T]{}, false
	}
	if n.entry.Expired(c.now()) {
		c.drop(n)
		return Entry[T]{}, false
	}
	c.unlink(n)
	c.pushFront(n)
	return n.entry, true
}

func (c *LRUCache[T]) Put(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.now()
	e := Entry[T]{Value: value, StoredAt: stored}
	if ttl > 0 {
		e.ExpiresAt = stored.Add(ttl)
	}

	if n, ok := c.index[key]; ok {
		n.entry = e
		c.unlink(n)
		c.pushFront(n)
		return
	}

	n := &node[T]{key: key, entry: e}
	c.index[key] = n
	c.pushFront(n)
	for len(c.index) > c.capacity {
		c.drop(c.ring.prev)
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.index[key]; ok {
		c.drop(n)
	}
}

func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.ring.prev, c.ring.next = &c.ring, &c.ring
}

// CleanExpired drops expired entries and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for n := c.ring.next; n != &c.ring; {
		next := n.next
		if n.entry.Expired(now) {
			c.drop(n)
			removed++
		}
		n = next
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
