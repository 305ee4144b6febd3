package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/handlers"
)

func init() { Register("dashboard", registerDashboard) }

func registerDashboard(r chi.Router, d deps.Deps) {
	r.Get("/dashboard", handlers.Dashboard(d))
	r.Get(EventsPath, handlers.Events(d))
	r.Post("/dashboard/bookmarks", handlers.CreateBookmark(d))
	r.Post("/dashboard/bookmarks/{id}/delete", handlers.DeleteBookmark(d))
}

// EventsPath is the long-lived stream route, exempt from request timeouts.
const EventsPath = "/dashboard/events"
