package middlewares

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type KeyFunc func(r *http.Request) string

// PerIPKey keys limits by client IP.
func PerIPKey(prefix string) KeyFunc {
	return func(r *http.Request) string {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		return prefix + ":" + ip
	}
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For may have a list: client, proxy1, proxy2...
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func tooMany(w http.ResponseWriter, retryAfter time.Duration) {
	sec := int64((retryAfter + time.Second - 1) / time.Second)
	if sec < 1 {
		sec = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(sec, 10))
	http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
}

// --------- Token Bucket (Redis + Lua) ---------

const tokenBucketLua = `
-- KEYS[1] = bucket key (hash with fields: tokens, ts)
-- ARGV[1] = refill rate per second, ARGV[2] = capacity
-- Returns: {allowed (1/0), remaining_tokens, retry_after_ms}
local key   = KEYS[1]
local rate  = tonumber(ARGV[1])
local cap   = tonumber(ARGV[2])

local t = redis.call('TIME')
local now_ms = (tonumber(t[1]) * 1000) + math.floor(tonumber(t[2]) / 1000)

local data = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(data[1])
local ts     = tonumber(data[2])

if tokens == nil then
  tokens = cap
  ts = now_ms
end

local delta_ms = now_ms - ts
if delta_ms > 0 then
  tokens = math.min(cap, tokens + (delta_ms / 1000.0) * rate)
end

local allowed = 0
local retry_after_ms = 0
if tokens >= 1.0 then
  tokens = tokens - 1.0
  allowed = 1
else
  retry_after_ms = math.ceil((1.0 - tokens) * 1000.0 / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now_ms)
redis.call('PEXPIRE', key, math.ceil((cap / rate) * 1000.0))

return {allowed, math.floor(tokens), retry_after_ms}
`

type RedisTokenBucket struct {
	rdb      *redis.Client
	keyFn    KeyFunc
	ratePerS float64
	burst    int
	script   *redis.Script
	log      *zap.Logger
}

func NewRedisTokenBucket(rdb *redis.Client, ratePerSecond float64, burst int, keyFn KeyFunc) *RedisTokenBucket {
	return &RedisTokenBucket{
		rdb:      rdb,
		keyFn:    keyFn,
		ratePerS: ratePerSecond,
		burst:    burst,
		script:   redis.NewScript(tokenBucketLua),
		log:      zap.L().Named("token_bucket"),
	}
}

func (tb *RedisTokenBucket) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := tb.keyFn(r)
		res, err := tb.script.Run(r.Context(), tb.rdb, []string{key},
			strconv.FormatFloat(tb.ratePerS, 'f', -1, 64),
			strconv.Itoa(tb.burst),
		).Int64Slice()
		if err != nil || len(res) != 3 {
			tb.log.Warn("redis error, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Policy", "token-bucket")
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tb.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))

		if res[0] != 1 {
			retry := time.Duration(res[2]) * time.Millisecond
			tb.log.Info("blocked", zap.String("key", key), zap.Duration("retry_after", retry))
			tooMany(w, retry)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------- Sliding Window (Redis ZSET) ---------

type RedisSlidingWindow struct {
	rdb    *redis.Client
	keyFn  KeyFunc
	limit  int
	window time.Duration
	log    *zap.Logger
}

func NewRedisSlidingWindow(rdb *redis.Client, limit int, window time.Duration, keyFn KeyFunc) *RedisSlidingWindow {
	return &RedisSlidingWindow{rdb: rdb, keyFn: keyFn, limit: limit, window: window, log: zap.L().Named("sliding_window")}
}

func (sw *RedisSlidingWindow) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now()
		nowMs := now.UnixMilli()
		key := sw.keyFn(r)

		pipe := sw.rdb.TxPipeline()
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: strconv.FormatInt(now.UnixNano(), 36)})
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(nowMs-sw.window.Milliseconds(), 10))
		countCmd := pipe.ZCard(ctx, key)
		oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, sw.window+time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			sw.log.Warn("redis error, allowing request", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		count := int(countCmd.Val())

		w.Header().Set("X-RateLimit-Policy", "sliding-window")
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(sw.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, sw.limit-count)))

		if count > sw.limit {
			retry := time.Second
			if oldest := oldestCmd.Val(); len(oldest) == 1 {
				retry = time.Duration(int64(oldest[0].Score)+sw.window.Milliseconds()-nowMs) * time.Millisecond
			}
			sw.log.Info("blocked", zap.String("key", key), zap.Duration("retry_after", retry))
			tooMany(w, retry)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------- In-memory fallback (x/time/rate) ---------

// MemoryRateLimiter keeps one token bucket per key in process memory.
// Used when Redis is not configured; limits are per instance.
type MemoryRateLimiter struct {
	limiters sync.Map // key -> *memEntry
	rate     rate.Limit
	burst    int
	keyFn    KeyFunc
	idleTTL  time.Duration
	policy   string
}

type memEntry struct {
	lim  *rate.Limiter
	seen atomicTime
}

func NewMemoryRateLimiter(r rate.Limit, burst int, keyFn KeyFunc) *MemoryRateLimiter {
	return &MemoryRateLimiter{rate: r, burst: burst, keyFn: keyFn, idleTTL: 10 * time.Minute, policy: "memory-token-bucket"}
}

// Limiter returns the limiter for key, creating it on first use.
func (l *MemoryRateLimiter) Limiter(key string) *rate.Limiter {
	now := time.Now()
	if v, ok := l.limiters.Load(key); ok {
		e := v.(*memEntry)
		e.seen.Store(now)
		return e.lim
	}
	e := &memEntry{lim: rate.NewLimiter(l.rate, l.burst)}
	e.seen.Store(now)
	actual, _ := l.limiters.LoadOrStore(key, e)
	return actual.(*memEntry).lim
}

// Sweep drops limiters idle for longer than the idle TTL.
func (l *MemoryRateLimiter) Sweep(now time.Time) {
	l.limiters.Range(func(k, v any) bool {
		if now.Sub(v.(*memEntry).seen.Load()) > l.idleTTL {
			l.limiters.Delete(k)
		}
		return true
	})
}

// RunSweeper sweeps every interval until ctx is done.
func (l *MemoryRateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Sweep(now)
		}
	}
}

func (l *MemoryRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.Limiter(l.keyFn(r))
		res := lim.Reserve()
		w.Header().Set("X-RateLimit-Policy", l.policy)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			tooMany(w, delay)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(lim.Tokens()))))
		next.ServeHTTP(w, r)
	})
}
