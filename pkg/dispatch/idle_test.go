package dispatch

import (
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictsBefore(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := &idleEntry{handle: 2, priority: domain.PriorityOperational, last: base}
	newer := &idleEntry{handle: 1, priority: domain.PriorityOperational, last: base.Add(time.Second)}
	critical := &idleEntry{handle: 3, priority: domain.PriorityCritical, last: base.Add(-time.Hour)}

	assert.True(t, evictsBefore(older, newer), "staler chain of equal priority goes first")
	assert.False(t, evictsBefore(newer, older))
	assert.True(t, evictsBefore(newer, critical), "lower priority goes first regardless of age")
	assert.False(t, evictsBefore(critical, older))

	sameTime := &idleEntry{handle: 5, priority: domain.PriorityOperational, last: base}
	assert.True(t, evictsBefore(older, sameTime), "ties fall back to the older container")
}

func TestIdleIndex_PopOver(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	x := newIdleIndex()

	x.add(idleEntry{handle: 1, id: domain.ChainID{ID: 1}, priority: domain.PriorityCritical, last: base})
	x.add(idleEntry{handle: 2, id: domain.ChainID{ID: 2}, priority: domain.PriorityExpendable, last: base.Add(3 * time.Second)})
	x.add(idleEntry{handle: 3, id: domain.ChainID{ID: 3}, priority: domain.PriorityOperational, last: base.Add(time.Second)})
	x.add(idleEntry{handle: 4, id: domain.ChainID{ID: 4}, priority: domain.PriorityOperational, last: base.Add(2 * time.Second)})
	require.Equal(t, 4, x.Len())

	assert.True(t, x.remove(4))
	assert.False(t, x.remove(4))
	assert.Equal(t, 3, x.Len())

	x.add(idleEntry{handle: 4, id: domain.ChainID{ID: 4}, priority: domain.PriorityOperational, last: base.Add(2 * time.Second)})

	victims := x.popOver(1)
	require.Len(t, victims, 3)
	assert.Equal(t, uint64(2), victims[0].handle)
	assert.Equal(t, uint64(3), victims[1].handle)
	assert.Equal(t, uint64(4), victims[2].handle)
	assert.Equal(t, 1, x.Len())

	assert.Empty(t, x.popOver(1))
	assert.True(t, x.remove(1))
	assert.Equal(t, 0, x.Len())
}

func TestIdleIndex_ReAddReplaces(t *testing.T) {
	x := newIdleIndex()
	x.add(idleEntry{handle: 1, priority: domain.PriorityExpendable})
	x.add(idleEntry{handle: 1, priority: domain.PriorityCritical, seq: 2})
	assert.Equal(t, 1, x.Len())

	victims := x.popOver(0)
	require.Len(t, victims, 1)
	assert.Equal(t, domain.PriorityCritical, victims[0].priority)
	assert.Equal(t, uint64(2), victims[0].seq)
}

func TestKey_SeparatesExternalFlag(t *testing.T) {
	assert.NotEqual(t, Key(domain.ChainID{ID: 1}), Key(domain.ChainID{ID: 1, External: true}))
	assert.Equal(t, Key(domain.ChainID{ID: 77}), Key(domain.ChainID{ID: 77}))
}
