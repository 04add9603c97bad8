// Package middleware holds the small HTTP middleware chain for the
// regulator's admin surface: one middleware per file, each a
// func(http.Handler) http.Handler.
package middleware

import "net/http"

// secureResponseHeaders are set on every admin response.
var secureResponseHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Cache-Control":          "no-store",
}

// SecureHeaders sets a minimal set of defensive headers on every
// response from the admin HTTP surface.
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range secureResponseHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
