package dispatch

import (
	"encoding/binary"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/cespare/xxhash/v2"
)

// shard is one independently locked bucket of the chain index.
type shard struct {
	mu    sync.RWMutex
	index map[domain.ChainID]*container
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{index: make(map[domain.ChainID]*container)}
	}
	return shards
}

// Key hashes a chain id. The dispatcher picks index shards with it; callers
// partitioning work by chain can use it the same way.
func Key(id domain.ChainID) uint64 {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], id.ID)
	if id.External {
		buf[8] = 1
	}
	return xxhash.Sum64(buf[:])
}

func (s *shard) get(id domain.ChainID) *container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[id]
}

// getOrCreate returns the container for id, creating it with mk if absent.
// The second result reports whether a container was created.
func (s *shard) getOrCreate(id domain.ChainID, mk func() *container) (*container, bool) {
	if c := s.get(id); c != nil {
		return c, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.index[id]; ok {
		return c, false
	}
	c := mk()
	s.index[id] = c
	return c, true
}

// remove deletes c from the index if it is still the registered container.
func (s *shard) remove(c *container) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index[c.id] != c {
		return false
	}
	delete(s.index, c.id)
	return true
}

func (s *shard) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}
