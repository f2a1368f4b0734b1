package catalog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const versionKey = "lib:ver"

// Request-scoped cache guard: no PINGs, warn once per call, no retries.
type cache struct {
	rdb     *redis.Client
	enabled bool
	warned  bool
	prefix  string
	ttl     time.Duration
	shortTO time.Duration
}

func cacheTimeout() time.Duration {
	if v := os.Getenv("CATALOG_CACHE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 150 * time.Millisecond
}

// newCache resolves the prefix "lib:v{n}:" from lib:ver (default 1).
// A failed version read fails open to v1.
func newCache(ctx context.Context, rdb *redis.Client) *cache {
	if rdb == nil || os.Getenv("CATALOG_DISABLE_CACHE") == "1" {
		return &cache{enabled: false}
	}

	ttl := 10 * time.Minute
	if v := os.Getenv("CATALOG_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}
	c := &cache{rdb: rdb, enabled: true, ttl: ttl, shortTO: cacheTimeout()}

	vctx, cancel := context.WithTimeout(ctx, c.shortTO)
	defer cancel()
	ver, err := rdb.Get(vctx, versionKey).Int64()
	if err != nil {
		if err != redis.Nil {
			c.warnOnce("version read failed", err)
		}
		ver = 1
	}
	c.prefix = fmt.Sprintf("lib:v%d:", ver)
	return c
}

func (c *cache) key(block string) string { return c.prefix + block }

// get decodes the cached block into dst. False on miss or any failure.
func (c *cache) get(ctx context.Context, block string, dst any) bool {
	if !c.enabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.shortTO)
	defer cancel()

	b, err := c.rdb.Get(ctx, c.key(block)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.warnOnce("cache get failed; bypassing cache", err)
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.warnOnce("cache decode failed", err)
		return false
	}
	return true
}

func (c *cache) set(ctx context.Context, block string, v any) {
	if !c.enabled {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.shortTO)
	defer cancel()
	if err := c.rdb.SetEx(ctx, c.key(block), b, c.ttl).Err(); err != nil {
		c.warnOnce("cache set failed (muted next)", err)
	}
}

func (c *cache) warnOnce(msg string, err error) {
	if c.warned {
		return
	}
	c.warned = true
	zap.L().Named("catalog.cache").Warn(msg, zap.Error(err))
}

// BumpVersion increments lib:ver so every cached listing goes stale.
// Call it after a committed borrow, return or catalog write. No-op when
// rdb is nil.
func BumpVersion(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout())
	defer cancel()
	if err := rdb.Incr(cctx, versionKey).Err(); err != nil {
		return fmt.Errorf("bump version failed: %w", err)
	}
	return nil
}
