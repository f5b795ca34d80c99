package storage

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

type memoryEntry struct {
	part     domain.PartRecord
	cachedAt time.Time
}

// MemoryCache is the session-local ResolutionCache: a map of barcode to
// snapshot with lazy TTL expiry. Entries are owned exclusively by the scan
// pipeline and never handed out by reference.
type MemoryCache struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCache(clk clock.Clock, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, code string) (domain.PartRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[code]
	if !ok {
		return domain.PartRecord{}, false, nil
	}
	if c.clock.Now().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, code)
		return domain.PartRecord{}, false, nil
	}

	return entry.part, true, nil
}

func (c *MemoryCache) Put(_ context.Context, code string, part domain.PartRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[code] = memoryEntry{part: part, cachedAt: c.clock.Now()}
	return nil
}

func (c *MemoryCache) Evict(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, code)
	return nil
}
