package idmask

import (
	"sync"

	"github.com/spoofkit/idmask/refstr"
)

// valueCache lazily constructs the canonical spoofed value and hands out
// one independent claim per request. The canonical entry keeps its own
// baseline claim for the life of the process; the cache never releases it
// on a caller's behalf, so releasing every handle acquire ever returned
// leaves the entry intact.
type valueCache struct {
	mu        sync.Mutex
	payload   string
	newValue  func(string) *refstr.Value
	canonical *refstr.Value
}

// acquire returns a freshly retained handle on the canonical value,
// constructing it on first use. The check and the construction share one
// critical section so concurrent first callers cannot build two entries.
func (c *valueCache) acquire() *refstr.Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.canonical == nil {
		construct := c.newValue
		if construct == nil {
			construct = refstr.New
		}
		c.canonical = construct(c.payload)
	}

	return c.canonical.Retain()
}
