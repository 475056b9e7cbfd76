package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBacking struct {
	values  map[string]entry
	getErr  error
	setErr  error
	gets    int
	sets    int
	deletes int
}

type entry struct {
	value   []byte
	expires time.Time
}

func newMemBacking() *memBacking {
	return &memBacking{values: map[string]entry{}}
}

func (m *memBacking) CacheGet(_ context.Context, key string) ([]byte, bool, error) {
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	e, ok := m.values[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *memBacking) CacheSet(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = entry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (m *memBacking) CacheDelete(_ context.Context, key string) (bool, error) {
	m.deletes++
	_, ok := m.values[key]
	delete(m.values, key)
	return ok, nil
}

func (m *memBacking) CacheExists(_ context.Context, key string) (bool, error) {
	e, ok := m.values[key]
	return ok && time.Now().Before(e.expires), nil
}

func TestCacheSetGet(t *testing.T) {
	c := New(newMemBacking())
	ctx := context.Background()

	ok := c.Set(ctx, "k", []byte("v"), time.Minute)
	require.True(t, ok)

	got, found := c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), got)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New(newMemBacking(), WithSweepInterval(100*time.Millisecond))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 500*time.Millisecond)

	_, found := c.Get(ctx, "k")
	require.True(t, found, "entry should be live inside its TTL")

	time.Sleep(600 * time.Millisecond)

	_, found = c.Get(ctx, "k")
	assert.False(t, found, "entry should expire after its TTL")
}

func TestCachePromotesBackingHit(t *testing.T) {
	backing := newMemBacking()
	ctx := context.Background()

	require.NoError(t, backing.CacheSet(ctx, "k", []byte("durable"), time.Minute))
	backing.gets = 0

	c := New(backing)

	got, found := c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("durable"), got)
	assert.Equal(t, 1, backing.gets)

	// Second read is served from the promoted in-process copy.
	_, found = c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, 1, backing.gets)
}

func TestCacheBackingErrorIsMiss(t *testing.T) {
	backing := newMemBacking()
	backing.getErr = eris.New("connection refused")
	c := New(backing)

	_, found := c.Get(context.Background(), "k")
	assert.False(t, found)
}

func TestCacheSetBackingErrorKeepsLocal(t *testing.T) {
	backing := newMemBacking()
	backing.setErr = eris.New("connection refused")
	c := New(backing)
	ctx := context.Background()

	ok := c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.False(t, ok)

	got, found := c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), got)
}

func TestCacheNilBacking(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, found := c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), got)
	assert.True(t, c.Exists(ctx, "k"))
	assert.True(t, c.Delete(ctx, "k"))
	assert.False(t, c.Exists(ctx, "k"))
}

func TestCacheDelete(t *testing.T) {
	backing := newMemBacking()
	c := New(backing)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.True(t, c.Delete(ctx, "k"))
	assert.False(t, c.Exists(ctx, "k"))
	assert.False(t, c.Delete(ctx, "k"))
}

func TestKeyStable(t *testing.T) {
	a := Key("fetch", "scraper", "doc_type=deed")
	b := Key("fetch", "scraper", "doc_type=deed")
	c := Key("fetch", "scraper", "doc_type=lien")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "fetch:")
}

func TestKeyPartBoundaries(t *testing.T) {
	// Parts are delimited, so shifting a boundary changes the key.
	assert.NotEqual(t, Key("n", "ab", "c"), Key("n", "a", "bc"))
}
