// ABOUTME: TTL and size bounded cache of rendered markdown keyed by content hash
// ABOUTME: Wraps any Renderer so unchanged documents skip goldmark and bluemonday

package markdown

import (
	"container/list"
	"crypto/sha256"
	"sync"
	"time"
)

type cacheEntry struct {
	html       string
	renderedAt time.Time
	element    *list.Element
}

// CachingRenderer memoizes another Renderer. Entries are keyed by the SHA-256
// of the raw markdown, so an edited document is simply a new key.
// Uses a doubly-linked list in recency order for O(1) eviction.
type CachingRenderer struct {
	next Renderer

	mu      sync.Mutex
	entries map[[sha256.Size]byte]*cacheEntry
	order   *list.List // least recently used at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// NewCache wraps next with a cache of at most maxSize entries, each kept for ttl.
// A background goroutine drops expired entries until Close.
func NewCache(next Renderer, ttl time.Duration, maxSize int) *CachingRenderer {
	c := &CachingRenderer{
		next:    next,
		entries: make(map[[sha256.Size]byte]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Render implements Renderer. Errors are not cached.
func (c *CachingRenderer) Render(raw []byte) (string, error) {
	key := sha256.Sum256(raw)

	if html, ok := c.lookup(key); ok {
		return html, nil
	}

	html, err := c.next.Render(raw)
	if err != nil {
		return "", err
	}

	c.store(key, html)
	return html, nil
}

// Len returns the number of cached entries.
func (c *CachingRenderer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachingRenderer) lookup(key [sha256.Size]byte) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.renderedAt) >= c.ttl {
		c.removeLocked(key, entry)
		return "", false
	}
	c.order.MoveToBack(entry.element)
	return entry.html, true
}

func (c *CachingRenderer) store(key [sha256.Size]byte, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.html = html
		entry.renderedAt = c.now()
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{
		html:       html,
		renderedAt: c.now(),
		element:    c.order.PushBack(key),
	}
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (c *CachingRenderer) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.([sha256.Size]byte)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *CachingRenderer) removeLocked(key [sha256.Size]byte, entry *cacheEntry) {
	c.order.Remove(entry.element)
	delete(c.entries, key)
}

func (c *CachingRenderer) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes all expired entries.
func (c *CachingRenderer) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.renderedAt) >= c.ttl {
			c.removeLocked(key, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *CachingRenderer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
