package middlewares

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

const requestIDHeader = "X-Request-ID"

// Client-supplied ids are kept only when they are short and log-safe.
var ridRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// RequestID tags each request with an id, reusing a sane incoming
// X-Request-ID. The id lands in the context, the request header (for
// apperr) and the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if !ridRe.MatchString(rid) {
			rid = uuid.NewString()
		}
		r.Header.Set(requestIDHeader, rid)
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, rid)))
	})
}

func GetRequestID(r *http.Request) string {
	if v, ok := r.Context().Value(ctxKeyRequestID).(string); ok && v != "" {
		return v
	}
	return r.Header.Get(requestIDHeader)
}
