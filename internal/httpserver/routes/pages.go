package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/views"
)

func init() { Register("pages", registerPages) }

func registerPages(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Landing(d))
	r.Get("/login", handlers.Login(d))

	static := views.Static()
	r.Method(http.MethodGet, "/static/*", static)
	r.Get("/favicon.ico", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/static/favicon.svg", http.StatusMovedPermanently)
	})
}
