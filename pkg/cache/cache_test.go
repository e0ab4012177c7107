package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Symbol string  `json:"symbol"`
	Action float64 `json:"action"`
}

func TestMemoryCache_SetGetStruct(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{}, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", payload{Symbol: "AAPL", Action: 0.5}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Symbol: "AAPL", Action: 0.5}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "s", "hello", time.Minute))
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "hello", s)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{}, 0)
	defer mc.Close()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	mc.now = func() time.Time { return now }

	var got payload
	assert.True(t, errors.Is(mc.Get(ctx, "missing", &got), ErrCacheMiss))

	require.NoError(t, mc.Set(ctx, "k", payload{Symbol: "X"}, time.Second))
	require.NoError(t, mc.Get(ctx, "k", &got))

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &got), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{MaxSize: 2}, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	now = now.Add(time.Second)
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCache_Delete(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{}, 0)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Delete(ctx, "a", "unknown"))
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "a", &v), ErrCacheMiss)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{}, 0)
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close())
}

// mapCache is an in-memory stand-in for Redis.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := encode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *mapCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return decode(b, dest)
}

func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapCache) Close() error { return nil }

func TestLayeredCache_PromotesFromRemote(t *testing.T) {
	remote := newMapCache()
	lc := NewLayeredCache(remote, MemoryConfig{}, 30*time.Second)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, remote.Set(ctx, "k", payload{Symbol: "MSFT"}, 0))

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "MSFT", got.Symbol)
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 1, remote.gets, "second read is served from memory")
}

func TestLayeredCache_WriteThroughAndDelete(t *testing.T) {
	remote := newMapCache()
	lc := NewLayeredCache(remote, MemoryConfig{}, 30*time.Second)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, lc.Set(ctx, "k", payload{Symbol: "TSLA", Action: -1}, time.Minute))
	assert.Contains(t, remote.data, "k")

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, -1.0, got.Action)
	assert.Equal(t, 0, remote.gets)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "realtime:AAPL:30:1d:2024-01-02", Key("realtime", "AAPL", 30, "1d", "2024-01-02"))
	assert.Equal(t, "p", Key("p"))
	assert.Equal(t, "", Key())
}

func TestMemoryCache_OverwriteKeepsSize(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{MaxSize: 2}, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "a", 2, 0))
	require.NoError(t, mc.Set(ctx, "b", 3, 0))
	assert.Equal(t, 2, mc.Len())

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 2, v)
}

func TestMemoryCache_RemoveExpired(t *testing.T) {
	mc := NewMemoryCache(MemoryConfig{}, time.Minute)
	defer mc.Close()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	mc.now = func() time.Time { return now }
	require.NoError(t, mc.Set(ctx, "short", 1, time.Second))
	require.NoError(t, mc.Set(ctx, "long", 2, time.Hour))

	now = now.Add(time.Minute)
	mc.removeExpired()
	assert.Equal(t, 1, mc.Len())
}

func TestLoaderCachesAndReportsHits(t *testing.T) {
	remote := newMapCache()
	l := NewLoader(remote)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Symbol: "AAPL", Action: 0.25}, nil
	}

	v, hit, err := Load(ctx, l, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "AAPL", v.Symbol)

	v, hit, err = Load(ctx, l, "k", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 0.25, v.Action)
	assert.Equal(t, 1, calls)
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	remote := newMapCache()
	l := NewLoader(remote)
	boom := errors.New("boom")

	_, _, err := Load(context.Background(), l, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, remote.data, "k")
}

func TestLoaderBoundsSharedLoad(t *testing.T) {
	l := NewLoader(newMapCache())
	l.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, _, err := Load(context.Background(), l, "k", time.Minute, func(ctx context.Context) (int, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLoaderCollapsesConcurrentMisses(t *testing.T) {
	l := NewLoader(nil)
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
	)
	load := func(context.Context) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := Load(context.Background(), l, "k", time.Minute, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []int{7, 7, 7, 7, 7}, results)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestLoaderReportsCacheFailures(t *testing.T) {
	var ops []string
	l := NewLoader(failingCache{})
	l.OnError = func(op, _ string, _ error) { ops = append(ops, op) }

	v, hit, err := Load(context.Background(), l, "k", time.Minute, func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, []string{"get", "set"}, ops)
}

type failingCache struct{}

func (failingCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Get(context.Context, string, interface{}) error { return errors.New("down") }
func (failingCache) Delete(context.Context, ...string) error { return nil }
func (failingCache) Close() error { return nil }
