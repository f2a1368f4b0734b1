package middlewares

import (
	"net/http"

	"github.com/5w1tchy/library-api/internal/api/apperr"
)

const defaultBodyLimit int64 = 1 << 20

// BodySizeLimit caps POST, PUT and PATCH bodies at limit bytes, 1 MiB when
// limit is not positive. A declared Content-Length over the cap is refused
// before the handler runs; undeclared bodies are cut off while reading.
func BodySizeLimit(limit int64) Middleware {
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength > limit {
					apperr.WriteStatus(w, r, http.StatusRequestEntityTooLarge, "", "request body too large")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
