package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

const loginError = "/login?error=" + codeAuth

// SignIn starts the OAuth flow and sends the browser to the provider.
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		next := safeNext(r.URL.Query().Get("next"), "/dashboard")

		target, err := d.Auth.SignInWithProvider(r.Context(), provider, next)
		switch {
		case errors.Is(err, auth.ErrUnknownProvider):
			http.NotFound(w, r)
			return
		case err != nil:
			d.Logger.Error("sign in failed", logger.String("provider", provider), logger.Error(err))
			http.Redirect(w, r, loginError, http.StatusFound)
			return
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Callback finishes the OAuth flow. Any failure, including a provider
// error such as ?error=access_denied, lands on the login page.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code, state := q.Get("code"), q.Get("state")

		if q.Get("error") != "" || code == "" || state == "" {
			d.Logger.Info("auth callback without code",
				logger.String("provider_error", q.Get("error")),
				logger.Bool("has_state", state != ""))
			http.Redirect(w, r, loginError, http.StatusFound)
			return
		}

		stored, err := d.Auth.ExchangeAuthCode(r.Context(), w, code, state)
		if err != nil {
			if auth.IsAuthError(err) {
				d.Logger.Warn("auth code exchange rejected", logger.Error(err))
			} else {
				d.Logger.Error("auth code exchange failed", logger.Error(err))
			}
			http.Redirect(w, r, loginError, http.StatusFound)
			return
		}

		next := safeNext(q.Get("next"), safeNext(stored, "/dashboard"))
		http.Redirect(w, r, next, http.StatusFound)
	}
}

// SignOut ends the session. Cookies are cleared even when the store fails.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Auth.SignOut(r.Context(), w, r); err != nil {
			d.Logger.Error("sign out failed", logger.Error(err))
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
