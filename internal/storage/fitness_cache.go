package storage

import (
	"sync"

	"carvolve/internal/model"
)

// FitnessCache maps genome content to the fitness last reported for it. It is
// shared for the whole process lifetime, grows monotonically and is safe for
// concurrent use without external locking.
type FitnessCache struct {
	mu      sync.RWMutex
	entries map[model.Genome]int64
}

func NewFitnessCache() *FitnessCache {
	return &FitnessCache{entries: make(map[model.Genome]int64)}
}

// Insert stores fitness for g, overwriting any previous value. replaced reports
// whether g was already present, which usually means it was evaluated twice.
func (c *FitnessCache) Insert(g model.Genome, fitness int64) (replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, replaced = c.entries[g]
	c.entries[g] = fitness
	return replaced
}

func (c *FitnessCache) Lookup(g model.Genome) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fitness, ok := c.entries[g]
	return fitness, ok
}

func (c *FitnessCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Best returns the highest-fitness genome ever recorded. Equal fitness is
// broken by the lexicographically smallest cell layout so the answer does not
// depend on map iteration order.
func (c *FitnessCache) Best() (model.Genome, int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		best    model.Genome
		fitness int64
		found   bool
	)
	for g, f := range c.entries {
		if !found || f > fitness || (f == fitness && genomeLess(g, best)) {
			best, fitness, found = g, f, true
		}
	}
	return best, fitness, found
}

// Range calls fn for every entry of a point-in-time copy; fn may call back
// into the cache. Iteration stops when fn returns false.
func (c *FitnessCache) Range(fn func(g model.Genome, fitness int64) bool) {
	c.mu.RLock()
	snapshot := make(map[model.Genome]int64, len(c.entries))
	for g, f := range c.entries {
		snapshot[g] = f
	}
	c.mu.RUnlock()

	for g, f := range snapshot {
		if !fn(g, f) {
			return
		}
	}
}

func genomeLess(a, b model.Genome) bool {
	for r := range a.Cells {
		for col := range a.Cells[r] {
			if a.Cells[r][col] != b.Cells[r][col] {
				return a.Cells[r][col] < b.Cells[r][col]
			}
		}
	}
	return false
}
