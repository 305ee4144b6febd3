package handlers

import (
	"net/http"
	"net/url"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/dashboard"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/views"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// Landing renders the home page. It never redirects.
func Landing(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := views.LandingData{User: auth.UserFromContext(r.Context())}
		if err := d.Views.Page(w, http.StatusOK, views.PageLanding, data); err != nil {
			d.Logger.Error("render landing failed", logger.Error(err))
		}
	}
}

// Login renders the provider buttons. Signed-in users never get here: the
// guard bounces them to /dashboard.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		next := safeNext(q.Get("next"), "/dashboard")

		providers := make([]views.Provider, 0, len(d.Providers))
		for _, p := range d.Providers {
			providers = append(providers, views.Provider{
				Name: p.Name,
				Href: p.Href + "?next=" + url.QueryEscape(next),
			})
		}

		data := views.LoginData{Error: message(q.Get("error")), Providers: providers}
		if err := d.Views.Page(w, http.StatusOK, views.PageLogin, data); err != nil {
			d.Logger.Error("render login failed", logger.Error(err))
		}
	}
}

// Dashboard mounts a controller for this tab and renders its first state.
// The tab's event stream attaches to the same controller afterwards.
func Dashboard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		ctrl := dashboard.NewController(d.Bookmarks, *user, d.Logger)
		if err := ctrl.Mount(r.Context()); err != nil {
			d.Logger.Warn("change feed unavailable, dashboard will not update live",
				logger.String("user_id", user.ID), logger.Error(err))
		}
		tabID := d.Tabs.Register(ctrl)

		data := views.DashboardData{
			User:      user,
			TabID:     tabID,
			Error:     message(r.URL.Query().Get("error")),
			LoadError: ctrl.LoadError() != nil,
			List:      views.ListData{Bookmarks: ctrl.Snapshot(), TabID: tabID},
		}
		if err := d.Views.Page(w, http.StatusOK, views.PageDashboard, data); err != nil {
			d.Logger.Error("render dashboard failed", logger.Error(err))
		}
	}
}
