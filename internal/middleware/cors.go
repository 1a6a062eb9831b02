// Package middleware provides HTTP middleware for the Better HAC BFF.
package middleware

import "net/http"

// CORS returns middleware that handles CORS headers. The BFF relays session
// cookies, so credentials are allowed for explicitly configured origins;
// a wildcard origin never gets Allow-Credentials (that combination enables
// CSRF against the upstream session).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			credentials := false
			for _, o := range allowedOrigins {
				if o == origin {
					allowed = true
					credentials = true
					break
				}
				if o == "*" {
					allowed = true
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				if credentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
