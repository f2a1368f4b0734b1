package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type LoginLimit struct {
	MaxAttempts int
	Window      time.Duration
}

// LoginRateLimit allows MaxAttempts per IP per Window. With a nil rdb the
// budget is tracked in memory instead.
func LoginRateLimit(rdb *redis.Client, lim LoginLimit) Middleware {
	if lim.MaxAttempts <= 0 {
		lim.MaxAttempts = 10
	}
	if lim.Window <= 0 {
		lim.Window = 5 * time.Minute
	}
	if rdb == nil {
		mem := NewMemoryRateLimiter(rate.Every(lim.Window/time.Duration(lim.MaxAttempts)), lim.MaxAttempts, PerIPKey("rl:login"))
		mem.policy = "login-memory"
		return mem.Middleware
	}

	log := zap.L().Named("login_limit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := PerIPKey("rl:login")(r)

			pipe := rdb.TxPipeline()
			incr := pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, lim.Window)
			if _, err := pipe.Exec(ctx); err != nil {
				log.Warn("redis error, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if incr.Val() > int64(lim.MaxAttempts) {
				ttl, err := rdb.TTL(ctx, key).Result()
				if err != nil || ttl <= 0 {
					ttl = lim.Window
				}
				w.Header().Set("X-RateLimit-Policy", "login")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(lim.MaxAttempts))
				tooMany(w, ttl)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
