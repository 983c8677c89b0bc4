package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is a process-local Guard. Expired entries are pruned on every call.
type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time

	Now func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{entries: map[string]time.Time{}, Now: time.Now}
}

func (g *MemoryGuard) Seen(_ context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.entries == nil {
		g.entries = map[string]time.Time{}
	}
	for k, exp := range g.entries {
		if !now.Before(exp) {
			delete(g.entries, k)
		}
	}
	if _, ok := g.entries[key]; ok {
		return true
	}
	g.entries[key] = now.Add(ttl)
	return false
}

// Len reports the number of live entries; used by tests and diagnostics.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *MemoryGuard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}
