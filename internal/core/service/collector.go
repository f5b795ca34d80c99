package service

import (
	"sync"

	"github.com/rl1809/scan-intake/internal/core/domain"
)

// BatchCollector receives parts resolved while a session is in batch mode.
type BatchCollector interface {
	Append(part domain.PartRecord)
}

// ListCollector is the default in-memory collector. The surrounding
// application drains it when the technician checks the batch out.
type ListCollector struct {
	mu    sync.Mutex
	parts []domain.PartRecord
}

func NewListCollector() *ListCollector {
	return &ListCollector{}
}

func (c *ListCollector) Append(part domain.PartRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parts = append(c.parts, part)
}

// Parts returns a copy of the collected parts in append order.
func (c *ListCollector) Parts() []domain.PartRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.PartRecord, len(c.parts))
	copy(out, c.parts)
	return out
}

// Drain returns the collected parts and empties the collector.
func (c *ListCollector) Drain() []domain.PartRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.parts
	c.parts = nil
	return out
}
