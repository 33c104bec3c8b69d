package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunHistoryStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)
	clk := &clock{t: time.Now()}

	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithClock(clk.now))
	ctx := context.Background()
	id := domain.ChainID{ID: 42, External: true}

	require.NoError(t, store.Save(ctx, id, []domain.HistoryEntry{{Message: "query", Step: "await"}}))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	// Key expiration is driven by miniredis, index pruning by the store clock.
	mr.FastForward(2 * time.Second)
	clk.advance(2 * time.Second)

	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrHistoryNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()
	id := domain.ChainID{ID: 1}

	require.NoError(t, store.Save(ctx, id, []domain.HistoryEntry{{Message: "start"}}))

	assert.True(t, mr.Exists("custom:app:int:0000000000000001"), "history key uses the prefix")
	assert.True(t, mr.Exists("custom:app:index"), "index uses the prefix")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ChainID{id}, ids)
}

func TestRedisStore_ListSkipsForeignMembers(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	_, err := mr.ZAdd(redis.DefaultPrefix+"index", 4102444800, "garbage")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, domain.ChainID{ID: 3}, nil))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ChainID{{ID: 3}}, ids)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	mr.Close()

	assert.Error(t, store.Ping(ctx))
	_, err = store.Load(ctx, domain.ChainID{ID: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrHistoryNotFound)
}
