// Package cache keeps fetched caption payloads in a two-tier cache:
// an in-memory L1 and an optional Redis L2 shared across processes.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Defaults for Options.
const (
	DefaultTTL             = time.Hour
	DefaultMaxEntries      = 256
	DefaultCleanupInterval = 5 * time.Minute
)

// Options configures a Tiered cache. Zero values take defaults.
type Options struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
	// RedisURL enables L2 (redis://host:port/db). Empty disables it.
	RedisURL string
	Now      func() time.Time
}

// Tiered is an L1 (memory) + L2 (Redis) cache of strings.
// Redis failures degrade to L1 only.
type Tiered struct {
	l1         sync.Map // hashed key -> *entry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	log        *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	data      string
	expiresAt time.Time
}

// New creates a Tiered cache and starts its L1 cleanup loop.
// An unusable RedisURL is logged and L2 stays disabled. Call Close when done.
func New(ctx context.Context, opts Options, log *zap.Logger) *Tiered {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Tiered{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		log:        log,
		stop:       make(chan struct{}),
	}

	if opts.RedisURL != "" {
		c.rdb = connectRedis(ctx, opts.RedisURL, log)
	}

	log.Debug("cache: initialized",
		zap.Duration("ttl", c.ttl),
		zap.Bool("redis", c.rdb != nil),
		zap.Int("max_entries", c.maxEntries))

	go c.cleanupLoop(opts.CleanupInterval)
	return c
}

func connectRedis(ctx context.Context, redisURL string, log *zap.Logger) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn("cache: invalid redis URL, L2 disabled", zap.Error(err))
		return nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("cache: redis unreachable, L2 disabled", zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	log.Info("cache: L2 redis connected", zap.String("addr", opts.Addr))
	return rdb
}

// Key builds the deterministic storage key for a caption URL.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(p))
	}
	return fmt.Sprintf("recap:%x", h.Sum(nil)[:12])
}

// Get tries L1, then L2. An L2 hit repopulates L1.
func (c *Tiered) Get(ctx context.Context, key string) (string, bool) {
	k := Key("transcript", key)

	if val, ok := c.l1.Load(k); ok {
		e := val.(*entry)
		if c.now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.data, true
		}
		c.l1.Delete(k)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, k).Result()
		if err == nil {
			c.hits.Add(1)
			c.l1.Store(k, &entry{data: data, expiresAt: c.now().Add(c.ttl)})
			return data, true
		}
		if err != redis.Nil {
			c.log.Debug("cache: L2 get failed", zap.Error(err))
		}
	}

	c.misses.Add(1)
	return "", false
}

// Set stores value in L1 and, when enabled, L2.
func (c *Tiered) Set(ctx context.Context, key, value string) {
	k := Key("transcript", key)

	c.evictIfNeeded()
	c.l1.Store(k, &entry{data: value, expiresAt: c.now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, k, value, c.ttl).Err(); err != nil {
			c.log.Debug("cache: L2 set failed", zap.Error(err))
		}
	}
}

// Stats returns hit and miss counters.
func (c *Tiered) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of L1 entries, expired ones included.
func (c *Tiered) Len() int {
	n := 0
	c.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the cleanup loop and closes the Redis client.
func (c *Tiered) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// evictIfNeeded makes room for one entry: expired entries go first, then the
// oldest until under maxEntries.
func (c *Tiered) evictIfNeeded() {
	count := c.Len()
	if count < c.maxEntries {
		return
	}

	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if e := val.(*entry); !now.Before(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return true
	})

	for count >= c.maxEntries {
		var (
			oldestKey any
			oldestAt  time.Time
		)
		c.l1.Range(func(key, val any) bool {
			e := val.(*entry)
			// Earlier expiry means older, since expiry = stored + ttl.
			if oldestKey == nil || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Tiered) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.now()
			c.l1.Range(func(key, val any) bool {
				if e := val.(*entry); !now.Before(e.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
