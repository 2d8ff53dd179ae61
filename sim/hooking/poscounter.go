package hooking

import (
	"sort"
	"sync"
)

// PosCounter is a hook that counts how many times each hooking position is
// triggered.
type PosCounter struct {
	lock  sync.Mutex
	count map[string]uint64
}

// NewPosCounter creates a new PosCounter.
func NewPosCounter() *PosCounter {
	return &PosCounter{
		count: make(map[string]uint64),
	}
}

// Func counts the position of the hook context.
func (c *PosCounter) Func(ctx HookCtx) {
	if ctx.Pos == nil {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.count[ctx.Pos.Name]++
}

// Count returns the number of times that the position has been triggered.
func (c *PosCounter) Count(pos *HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.count[pos.Name]
}

// Counts returns a copy of the counters, indexed by position name.
func (c *PosCounter) Counts() map[string]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	counts := make(map[string]uint64, len(c.count))
	for name, n := range c.count {
		counts[name] = n
	}

	return counts
}

// PosNames returns the names of all the positions that have been triggered,
// sorted alphabetically.
func (c *PosCounter) PosNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	names := make([]string, 0, len(c.count))
	for name := range c.count {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Reset clears all the counters.
func (c *PosCounter) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.count = make(map[string]uint64)
}
