package storage

import "sync"

// ScheduleCache memoizes the per-user "has enabled rules" aggregate. It is
// owned by the storage provider and invalidated synchronously by every write
// that could change the answer (rule create/update/delete/toggle/preset,
// temporary grant/revoke, preference writes). It backs display aggregates
// only; admission verdicts never consult it.
type ScheduleCache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

func NewScheduleCache() *ScheduleCache {
	return &ScheduleCache{
		entries: make(map[string]bool),
	}
}

func (c *ScheduleCache) Get(userID string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[userID]
	return value, ok
}

func (c *ScheduleCache) Set(userID string, hasSchedule bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = hasSchedule
}

func (c *ScheduleCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *ScheduleCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]bool)
}
