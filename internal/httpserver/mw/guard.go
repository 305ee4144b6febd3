package mw

import (
	"net/http"
	"path"
	"strings"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Authenticator resolves the session, rotating expired credentials and
// writing the new cookies on w.
type Authenticator interface {
	Refresh(w http.ResponseWriter, r *http.Request) (*domain.User, error)
}

var staticExt = map[string]bool{
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// isStatic reports whether the path is an asset the guard skips.
func isStatic(p string) bool {
	if strings.HasPrefix(p, "/static/") || p == "/favicon.ico" {
		return true
	}
	return staticExt[strings.ToLower(path.Ext(p))]
}

// Guard refreshes the session on every non-static request, keeps signed-out
// visitors away from /dashboard and signed-in users away from /login.
// Everything else passes through with the user, if any, in the context.
func Guard(a Authenticator, log logger.Logger) func(http.Handler) http.Handler {
	log = log.Named("guard")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStatic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			user, err := a.Refresh(w, r)
			if err != nil {
				log.Warn("session refresh failed, treating as signed out",
					logger.String("path", r.URL.Path), logger.Error(err))
				user = nil
			}

			switch {
			case user == nil && strings.HasPrefix(r.URL.Path, "/dashboard"):
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			case user != nil && r.URL.Path == "/login":
				http.Redirect(w, r, "/dashboard", http.StatusFound)
				return
			}

			if user != nil {
				reportUser(r.Context(), user)
				r = r.WithContext(auth.WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
