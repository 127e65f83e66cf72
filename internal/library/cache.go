// ABOUTME: Thread-safe TTL cache for rendered chapter HTML.
// ABOUTME: Size-limited with O(1) eviction of the oldest entry.

package library

import (
	"container/list"
	"html/template"
	"sync"
	"time"
)

// cacheEntry stores the rendered HTML, timestamp, and list element for a key.
type cacheEntry struct {
	html      template.HTML
	timestamp time.Time
	element   *list.Element
}

// renderCache is a thread-safe, TTL-based, size-limited cache for rendered
// chapter bodies. Keys include the chapter's updated_at, so edits miss the
// cache naturally. Uses a doubly-linked list to maintain insertion order
// for O(1) eviction.
type renderCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// newRenderCache creates a cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func newRenderCache(ttl time.Duration, maxSize int) *renderCache {
	c := &renderCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached HTML for key if present and not expired.
func (c *renderCache) Get(key string) (template.HTML, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.timestamp) >= c.ttl {
		return "", false
	}
	return entry.html, true
}

// Put stores rendered HTML under key. If the cache is at capacity, the
// oldest entry is evicted to make room.
func (c *renderCache) Put(key string, html template.HTML) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// If key already exists, refresh it and move to back
	if entry, exists := c.entries[key]; exists {
		entry.html = html
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		html:      html,
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *renderCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *renderCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *renderCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *renderCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
