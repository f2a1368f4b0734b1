package middlewares

import "net/http"

var forwardedHeaders = []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto", "X-Real-IP"}

// ProxyHeaders drops client-supplied forwarding headers unless the server
// sits behind a proxy that sets them. Absolute URLs and rate-limit keys
// read these headers, so untrusted values must not reach them.
func ProxyHeaders(trusted bool) Middleware {
	return func(next http.Handler) http.Handler {
		if trusted {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range forwardedHeaders {
				r.Header.Del(h)
			}
			next.ServeHTTP(w, r)
		})
	}
}
