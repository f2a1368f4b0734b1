package middlewares

import (
	"net/http"
	"net/url"
	"strings"
)

type HPPOptions struct {
	CheckQuery                  bool
	CheckBody                   bool
	CheckBodyOnlyForContentType string
	Whitelist                   []string
}

// HPP guards against HTTP parameter pollution: repeated parameters keep
// their first value and parameters outside the whitelist are dropped.
func HPP(opts HPPOptions) Middleware {
	allowed := make(map[string]struct{}, len(opts.Whitelist))
	for _, k := range opts.Whitelist {
		allowed[k] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.CheckBody && r.Method == http.MethodPost &&
				strings.Contains(r.Header.Get("Content-Type"), opts.CheckBodyOnlyForContentType) {
				if err := r.ParseForm(); err == nil {
					r.Form = firstAllowed(r.Form, allowed)
					r.PostForm = firstAllowed(r.PostForm, allowed)
				}
			}
			if opts.CheckQuery && r.URL.RawQuery != "" {
				r.URL.RawQuery = firstAllowed(r.URL.Query(), allowed).Encode()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func firstAllowed(v url.Values, allowed map[string]struct{}) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		if _, ok := allowed[k]; ok && len(vals) > 0 {
			out[k] = vals[:1]
		}
	}
	return out
}

// DefaultHPPOptions allows the parameters this API reads.
func DefaultHPPOptions() HPPOptions {
	return HPPOptions{
		CheckQuery:                  true,
		CheckBody:                   true,
		CheckBodyOnlyForContentType: "application/x-www-form-urlencoded",
		Whitelist: []string{
			"q", "page", "page_size",
			"id", "book_id", "library", "slug",
			"username", "email", "password",
		},
	}
}
