package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chi1180/better-hac/internal/shared"
)

// Recoverer converts an uncaught panic into the 500 JSON envelope instead
// of an empty reply, so the SPA always gets a structured error body.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("Unhandled panic", "error", rec, "method", r.Method, "path", r.URL.Path)
				shared.Failure(w, http.StatusInternalServerError,
					"Internal Server Error", fmt.Sprint(rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
