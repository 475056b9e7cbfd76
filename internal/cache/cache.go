// Package cache provides a TTL key/value cache layered over an optional
// durable backing store with an in-process fallback. The cache is an
// optimization only: backing-store errors are logged and absorbed, never
// surfaced to callers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Backing is the durable store behind the cache. It is satisfied by the
// Store implementations; a nil Backing degrades the cache to in-process only.
type Backing interface {
	CacheGet(ctx context.Context, key string) ([]byte, bool, error)
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CacheDelete(ctx context.Context, key string) (bool, error)
	CacheExists(ctx context.Context, key string) (bool, error)
}

// Cache is a TTL key/value cache. Reads check the in-process layer first,
// then the backing store, promoting hits. Every entry carries an absolute
// expiry computed at insertion; the in-process layer is swept on a fixed
// interval, and the backing store enforces expiry on read.
type Cache struct {
	backing Backing
	local   *gocache.Cache
}

// Option configures the Cache.
type Option func(*options)

type options struct {
	sweepInterval time.Duration
}

// WithSweepInterval overrides the in-process eviction sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sweepInterval = d
		}
	}
}

// New creates a Cache over the given backing store. backing may be nil.
func New(backing Backing, opts ...Option) *Cache {
	o := options{sweepInterval: 60 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		backing: backing,
		local:   gocache.New(gocache.NoExpiration, o.sweepInterval),
	}
}

// Get returns the cached value for key, or ok=false on a miss. Entries past
// their expiry are never returned.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, found := c.local.Get(key); found {
		return v.([]byte), true
	}

	if c.backing == nil {
		return nil, false
	}

	value, found, err := c.backing.CacheGet(ctx, key)
	if err != nil {
		zap.L().Warn("cache: backing get failed, treating as miss",
			zap.String("key", keyPrefix(key)),
			zap.Error(err),
		)
		return nil, false
	}
	if !found {
		return nil, false
	}

	// Promote to the in-process layer. The backing TTL is not recoverable
	// here, so the promoted copy gets a short residency.
	c.local.Set(key, value, time.Minute)
	return value, true
}

// Set stores value under key with the given TTL in both layers.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	c.local.Set(key, value, ttl)

	if c.backing == nil {
		return true
	}
	if err := c.backing.CacheSet(ctx, key, value, ttl); err != nil {
		zap.L().Warn("cache: backing set failed, in-process copy retained",
			zap.String("key", keyPrefix(key)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Delete removes key from both layers, reporting whether it existed anywhere.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	_, hadLocal := c.local.Get(key)
	c.local.Delete(key)

	if c.backing == nil {
		return hadLocal
	}
	deleted, err := c.backing.CacheDelete(ctx, key)
	if err != nil {
		zap.L().Warn("cache: backing delete failed",
			zap.String("key", keyPrefix(key)),
			zap.Error(err),
		)
		return hadLocal
	}
	return hadLocal || deleted
}

// Exists reports whether key holds an unexpired entry in either layer.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	if _, found := c.local.Get(key); found {
		return true
	}
	if c.backing == nil {
		return false
	}
	exists, err := c.backing.CacheExists(ctx, key)
	if err != nil {
		zap.L().Warn("cache: backing exists failed",
			zap.String("key", keyPrefix(key)),
			zap.Error(err),
		)
		return false
	}
	return exists
}

// Key builds a stable cache key from namespace and parts.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

func keyPrefix(key string) string {
	if len(key) > 24 {
		return key[:24]
	}
	return key
}
