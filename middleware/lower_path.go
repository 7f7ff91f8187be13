package middleware

import (
	"net/http"
	"strings"
)

// LowercasePath routes paths case-insensitively by lowercasing the URL path
// before the router sees it. Every route must be registered in lowercase.
func LowercasePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lower := strings.ToLower(r.URL.Path); lower != r.URL.Path {
			r2 := r.Clone(r.Context())
			r2.URL.Path = lower
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}
