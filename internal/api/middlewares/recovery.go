package middlewares

import (
	"errors"
	"net/http"

	"github.com/5w1tchy/library-api/internal/api/apperr"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500 problem response.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(next http.Handler) http.Handler {
	log := zap.L().Named("panic")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}
			log.Error("handler panicked",
				zap.String("request_id", GetRequestID(r)),
				zap.String("route", r.Method+" "+r.URL.Path),
				zap.Any("panic", v),
				zap.Stack("stack"),
			)
			apperr.WriteStatus(w, r, http.StatusInternalServerError, "Internal Server Error", "")
		}()
		next.ServeHTTP(w, r)
	})
}
