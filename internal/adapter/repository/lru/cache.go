package lru

import "fmt"

const nilSlot = -1

type slot[K comparable, V any] struct {
	key   K
	value V
	prev  int
	next  int
}

// Cache is a fixed-capacity LRU map backed by a slot arena.
// Recency is an index-linked list through the arena (head is most recent),
// and removed slots go on a free list for reuse. The arena never grows past
// capacity. Cache is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	slots    []slot[K, V]
	index    map[K]int
	free     []int
	head     int
	tail     int
	capacity int
	onEvict  func(K, V)
}

// NewCache creates a Cache holding at most capacity entries.
// It panics if capacity is less than one.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		panic(fmt.Sprintf("lru: capacity must be positive, got %d", capacity))
	}
	return &Cache[K, V]{
		index:    make(map[K]int),
		head:     nilSlot,
		tail:     nilSlot,
		capacity: capacity,
	}
}

// OnEvict sets a hook called with every entry dropped to make room.
// Explicit removals do not trigger it.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.onEvict = fn
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(i)
	return c.slots[i].value, true
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return c.slots[i].value, true
}

// Contains reports whether key is present and marks it most recently used.
func (c *Cache[K, V]) Contains(key K) bool {
	i, ok := c.index[key]
	if ok {
		c.moveToFront(i)
	}
	return ok
}

// Put inserts or updates key as the most recently used entry. When the cache
// is full the least recently used entry is evicted first; evicted reports
// whether that happened.
func (c *Cache[K, V]) Put(key K, value V) (evicted bool) {
	if i, ok := c.index[key]; ok {
		c.slots[i].value = value
		c.moveToFront(i)
		return false
	}

	var i int
	switch {
	case len(c.index) >= c.capacity:
		i = c.evict()
		evicted = true
	case len(c.free) > 0:
		i = c.free[len(c.free)-1]
		c.free = c.free[:len(c.free)-1]
	default:
		c.slots = append(c.slots, slot[K, V]{})
		i = len(c.slots) - 1
	}

	c.slots[i] = slot[K, V]{key: key, value: value, prev: nilSlot, next: nilSlot}
	c.index[key] = i
	c.pushFront(i)
	return evicted
}

// Remove deletes key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.unlink(i)
	delete(c.index, key)
	c.slots[i] = slot[K, V]{prev: nilSlot, next: nilSlot}
	c.free = append(c.free, i)
	return true
}

// Range visits entries from most to least recently used without changing
// their recency. It stops when fn returns false.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	for i := c.head; i != nilSlot; i = c.slots[i].next {
		if !fn(c.slots[i].key, c.slots[i].value) {
			return
		}
	}
}

// Oldest returns the least recently used key.
func (c *Cache[K, V]) Oldest() (K, bool) {
	if c.tail == nilSlot {
		var zero K
		return zero, false
	}
	return c.slots[c.tail].key, true
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return len(c.index)
}

// Cap returns the maximum number of entries.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// evict drops the tail entry and returns its now unlinked slot.
func (c *Cache[K, V]) evict() int {
	i := c.tail
	old := c.slots[i]
	c.unlink(i)
	delete(c.index, old.key)
	if c.onEvict != nil {
		c.onEvict(old.key, old.value)
	}
	return i
}

func (c *Cache[K, V]) moveToFront(i int) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

func (c *Cache[K, V]) pushFront(i int) {
	c.slots[i].prev = nilSlot
	c.slots[i].next = c.head
	if c.head != nilSlot {
		c.slots[c.head].prev = i
	}
	c.head = i
	if c.tail == nilSlot {
		c.tail = i
	}
}

func (c *Cache[K, V]) unlink(i int) {
	s := &c.slots[i]
	if s.prev != nilSlot {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != nilSlot {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev = nilSlot
	s.next = nilSlot
}
