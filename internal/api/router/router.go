package router

import (
	"net/http"
	"time"

	catalogh "github.com/5w1tchy/library-api/internal/api/handlers/catalog"
	lendingh "github.com/5w1tchy/library-api/internal/api/handlers/lending"
	"github.com/5w1tchy/library-api/internal/api/handlers/profile"
	"github.com/5w1tchy/library-api/internal/api/httpx"
	"github.com/5w1tchy/library-api/internal/api/middlewares"
	"github.com/5w1tchy/library-api/internal/auth"
	"github.com/5w1tchy/library-api/internal/config"
	jwtutil "github.com/5w1tchy/library-api/internal/security/jwt"
	"github.com/5w1tchy/library-api/internal/security/password"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Global request budget per client IP.
const (
	ratePerSecond = 20
	rateBurst     = 40
	windowLimit   = 600
	windowSize    = time.Minute
)

type Deps struct {
	Config config.Config
	Redis  *redis.Client // nil: in-memory rate limits, no cache, no refresh tokens

	Catalog catalogh.Store
	Covers  catalogh.Covers // nil: cover endpoints answer 503
	Lending lendingh.Store
	Loans   profile.Loans
	Users   auth.UserStore
	Refresh auth.RefreshTokens

	Signer *jwtutil.Signer
	Hasher *password.Hasher

	// Limiter is used when Redis is nil. The caller owns its sweeper.
	Limiter *middlewares.MemoryRateLimiter
}

// NewMemoryLimiter is the fallback limiter for Deps.Limiter.
func NewMemoryLimiter() *middlewares.MemoryRateLimiter {
	return middlewares.NewMemoryRateLimiter(rate.Limit(ratePerSecond), rateBurst, middlewares.PerIPKey("rl:mem"))
}

func Router(d Deps) http.Handler {
	mux := http.NewServeMux()

	authn := middlewares.Authenticator{Tokens: d.Signer, Users: d.Users}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OKNoData(w)
	})

	ah := auth.New(d.Users, d.Refresh, d.Signer, d.Hasher)
	mux.HandleFunc("POST /auth/register", ah.Register)
	mux.Handle("POST /auth/login", middlewares.LoginRateLimit(d.Redis, middlewares.LoginLimit{})(http.HandlerFunc(ah.Login)))
	mux.HandleFunc("POST /auth/refresh", ah.Refresh)
	mux.HandleFunc("POST /auth/logout", ah.Logout)
	mux.Handle("POST /auth/logout-all", authn.RequireAuth(http.HandlerFunc(ah.LogoutAll)))
	mux.Handle("POST /auth/change-password", authn.RequireAuth(http.HandlerFunc(ah.ChangePassword)))

	catalogh.New(d.Catalog, d.Covers).Register(mux, catalogh.Routes{
		Optional:  authn.OptionalAuth,
		Librarian: authn.RequireRole(auth.RoleLibrarian, auth.RoleAdmin),
	})
	lendingh.New(d.Lending).Register(mux, authn.RequireAuth)
	profile.New(d.Users, d.Loans).Register(mux, authn.RequireAuth)

	return middlewares.Chain(mux,
		middlewares.ProxyHeaders(d.Config.TrustProxy),
		middlewares.RequestID,
		middlewares.AccessLog,
		middlewares.Recovery,
		middlewares.Cors(d.Config.CORSOrigins),
		middlewares.ResponseTime,
		middlewares.HPP(middlewares.DefaultHPPOptions()),
		rateLimit(d),
		middlewares.BodySizeLimit(d.Config.MaxBodySize),
		middlewares.Compression,
		middlewares.SecurityHeaders(middlewares.SecurityOptions{}),
	)
}

// rateLimit stacks a token bucket and a sliding window on Redis, or uses
// the in-memory limiter without it.
func rateLimit(d Deps) middlewares.Middleware {
	if d.Redis == nil {
		lim := d.Limiter
		if lim == nil {
			lim = NewMemoryLimiter()
		}
		return lim.Middleware
	}
	bucket := middlewares.NewRedisTokenBucket(d.Redis, ratePerSecond, rateBurst, middlewares.PerIPKey("rl:tb"))
	window := middlewares.NewRedisSlidingWindow(d.Redis, windowLimit, windowSize, middlewares.PerIPKey("rl:sw"))
	return func(next http.Handler) http.Handler {
		return bucket.Middleware(window.Middleware(next))
	}
}
