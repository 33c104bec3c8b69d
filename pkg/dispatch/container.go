package dispatch

import (
	"sync"
	"time"

	"github.com/aretw0/weft/pkg/chain"
	"github.com/aretw0/weft/pkg/domain"
)

type pending struct {
	env domain.Env
	msg domain.Message
}

// container is the registry-side wrapper around a chain. It is referenced by
// its handle from the idle index and by its chain id from the shard index.
type container struct {
	handle uint64
	id     domain.ChainID
	chain  *chain.Chain

	mu             sync.Mutex
	queue          []pending
	working        bool
	removed        bool
	idle           bool
	idleSeq        uint64
	priority       domain.Priority
	lastTransition time.Time

	// alive is only touched by the goroutine holding the claim.
	alive bool
}

func (c *container) enqueue(p pending) {
	c.queue = append(c.queue, p)
}

// next pops the oldest queued message. The caller holds c.mu.
func (c *container) next() (pending, bool) {
	if len(c.queue) == 0 {
		return pending{}, false
	}
	p := c.queue[0]
	c.queue[0] = pending{}
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return p, true
}
