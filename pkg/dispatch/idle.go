package dispatch

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/weft/pkg/domain"
)

// idleEntry is a snapshot of an idle container. Priority and last transition
// cannot change while a container is idle, so the snapshot stays exact.
type idleEntry struct {
	handle   uint64
	seq      uint64
	id       domain.ChainID
	priority domain.Priority
	last     time.Time
	index    int
}

// evictsBefore is the eviction order: lower priority first, then the entry
// idle the longest, then the older container.
func evictsBefore(a, b *idleEntry) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if !a.last.Equal(b.last) {
		return a.last.Before(b.last)
	}
	return a.handle < b.handle
}

type idleHeap []*idleEntry

func (h idleHeap) Len() int           { return len(h) }
func (h idleHeap) Less(i, j int) bool { return evictsBefore(h[i], h[j]) }
func (h idleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *idleHeap) Push(x any) {
	e := x.(*idleEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *idleHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// idleIndex ranks idle containers for eviction. The root of the heap is the
// next victim.
type idleIndex struct {
	mu      sync.Mutex
	heap    idleHeap
	handles map[uint64]*idleEntry
	size    atomic.Int64
}

func newIdleIndex() *idleIndex {
	return &idleIndex{handles: make(map[uint64]*idleEntry)}
}

// Len is safe to call without the lock.
func (x *idleIndex) Len() int {
	return int(x.size.Load())
}

func (x *idleIndex) add(e idleEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.handles[e.handle]; ok {
		heap.Remove(&x.heap, old.index)
	}
	entry := e
	heap.Push(&x.heap, &entry)
	x.handles[e.handle] = &entry
	x.size.Store(int64(len(x.heap)))
}

func (x *idleIndex) remove(handle uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.handles[handle]
	if !ok {
		return false
	}
	heap.Remove(&x.heap, e.index)
	delete(x.handles, handle)
	x.size.Store(int64(len(x.heap)))
	return true
}

// popOver removes and returns the lowest ranked entries until at most limit remain.
func (x *idleIndex) popOver(limit int) []idleEntry {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []idleEntry
	for len(x.heap) > limit {
		e := heap.Pop(&x.heap).(*idleEntry)
		delete(x.handles, e.handle)
		out = append(out, *e)
	}
	x.size.Store(int64(len(x.heap)))
	return out
}
