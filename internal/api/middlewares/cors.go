package middlewares

import (
	"net/http"
	"strings"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"go.uber.org/zap"
)

var (
	corsAllowHeaders  = strings.Join([]string{"Authorization", "Content-Type", "X-Request-ID"}, ", ")
	corsAllowMethods  = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsExposeHeaders = strings.Join([]string{
		"X-Request-ID", "X-Response-Time", "Retry-After",
		"X-RateLimit-Policy", "X-RateLimit-Limit", "X-RateLimit-Remaining",
	}, ", ")
)

// Cors admits browser requests from the allowed origins and answers their
// preflights. Requests with no Origin header are not cross-origin and pass.
func Cors(allowed []string) Middleware {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	log := zap.L().Named("cors")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !origins[origin] {
				log.Warn("origin rejected", zap.String("origin", origin), zap.String("path", r.URL.Path))
				apperr.WriteStatus(w, r, http.StatusForbidden, "", "origin not allowed")
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Add("Vary", "Origin")

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", "3600")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
