package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is a single-process Counter for local runs without Redis.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*window
}

type window struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now, entries: make(map[string]*window)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.entries[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		c.entries[key] = w
	}
	w.count++
	return w.count, nil
}

func (c *MemoryCounter) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
