package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Claims records keys held by in-flight writes. Each held key carries a
// channel closed on release so waiters can block on it.
type Claims struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	size atomic.Int64
}

// NewClaims creates an empty claims set.
func NewClaims() *Claims {
	return &Claims{held: make(map[string]chan struct{})}
}

// SeenAndRecord atomically checks if key is held and records it if not.
// Returns true if key was already held, false if it was newly recorded.
func (c *Claims) SeenAndRecord(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.held[key]; exists {
		return true
	}
	c.held[key] = make(chan struct{})
	c.size.Add(1)
	return false
}

// Unrecord releases key and wakes its waiters.
func (c *Claims) Unrecord(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if done, exists := c.held[key]; exists {
		delete(c.held, key)
		close(done)
		c.size.Add(-1)
	}
}

// Wait blocks until key is not held or ctx ends.
func (c *Claims) Wait(ctx context.Context, key string) error {
	c.mu.Lock()
	done, exists := c.held[key]
	c.mu.Unlock()
	if !exists {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the number of held keys.
func (c *Claims) Size() int64 {
	return c.size.Load()
}
