package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/mw"
)

func init() { Register("auth", registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limited := r.With(mw.RateLimit(mw.RateLimitConfig{
		Name:              "auth",
		Burst:             d.AuthRateBurst,
		RefillPerIPPerMin: d.AuthRatePerMinute,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	}, d.Logger))

	limited.Get("/auth/signin/{provider}", handlers.SignIn(d))
	limited.Get("/auth/callback", handlers.Callback(d))
	r.Post("/auth/signout", handlers.SignOut(d))
}
