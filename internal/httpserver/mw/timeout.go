package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// TimeoutExcept applies chi's Timeout to every request except the listed
// long-lived paths (event streams).
func TimeoutExcept(d time.Duration, paths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		skip[p] = true
	}
	timeout := middleware.Timeout(d)

	return func(next http.Handler) http.Handler {
		limited := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
